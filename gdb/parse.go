package gdb

import (
	"strconv"
	"strings"
)

// ParseRecord 解析一行MI输出
// 语法（GDB/MI）：
//
//	[token] ^ result-class ( "," result )*     结果记录
//	[token] * async-class ( "," result )*      执行状态记录
//	[token] + async-class ( "," result )*      进度记录
//	[token] = async-class ( "," result )*      通知记录
//	~ c-string | @ c-string | & c-string       流记录
//	(gdb)                                      提示符，返回nil
//
// 解析永远不会失败：无法识别的行会作为console流记录原样上报，
// 保证操作者能看到gdb输出的每一行。
func ParseRecord(line string) Record {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil
	}
	if strings.TrimSpace(line) == "(gdb)" {
		return nil
	}

	p := &parser{s: line}
	token := p.parseToken()

	switch {
	case p.eat('^'):
		class, payload, ok := p.parseClassAndResults()
		if !ok {
			return StreamRecord{Kind: ConsoleStream, Text: line}
		}
		return ResultRecord{Token: token, Class: RecordClass(class), Payload: payload}
	case p.eat('*'):
		class, payload, ok := p.parseClassAndResults()
		if !ok {
			return StreamRecord{Kind: ConsoleStream, Text: line}
		}
		return ExecAsyncRecord{Token: token, Class: class, Payload: payload}
	case p.eat('+'):
		class, payload, ok := p.parseClassAndResults()
		if !ok {
			return StreamRecord{Kind: ConsoleStream, Text: line}
		}
		return StatusAsyncRecord{Token: token, Class: class, Payload: payload}
	case p.eat('='):
		class, payload, ok := p.parseClassAndResults()
		if !ok {
			return StreamRecord{Kind: ConsoleStream, Text: line}
		}
		return NotifyAsyncRecord{Token: token, Class: class, Payload: payload}
	case token == 0 && p.eat('~'):
		return StreamRecord{Kind: ConsoleStream, Text: p.parseStreamText()}
	case token == 0 && p.eat('@'):
		return StreamRecord{Kind: TargetStream, Text: p.parseStreamText()}
	case token == 0 && p.eat('&'):
		return StreamRecord{Kind: LogStream, Text: p.parseStreamText()}
	default:
		// 非MI行（目标程序输出、回显等）按console上报
		return StreamRecord{Kind: ConsoleStream, Text: line}
	}
}

type parser struct {
	s string
	i int
}

func (p *parser) done() bool {
	return p.i >= len(p.s)
}

func (p *parser) peek() byte {
	if p.done() {
		return 0
	}
	return p.s[p.i]
}

func (p *parser) eat(c byte) bool {
	if p.peek() == c {
		p.i++
		return true
	}
	return false
}

// parseToken 解析记录前缀的数字token，没有则返回0
func (p *parser) parseToken() int64 {
	start := p.i
	for !p.done() && p.s[p.i] >= '0' && p.s[p.i] <= '9' {
		p.i++
	}
	if p.i == start {
		return 0
	}
	token, err := strconv.ParseInt(p.s[start:p.i], 10, 64)
	if err != nil {
		p.i = start
		return 0
	}
	return token
}

// parseClassAndResults 解析记录类别和其后的键值对
func (p *parser) parseClassAndResults() (string, Value, bool) {
	start := p.i
	for !p.done() && p.s[p.i] != ',' {
		p.i++
	}
	class := p.s[start:p.i]
	if class == "" {
		return "", Value{}, false
	}
	payload := Value{Kind: TupleValue}
	if p.eat(',') {
		fields, ok := p.parseResults()
		if !ok {
			return "", Value{}, false
		}
		payload.Fields = fields
	}
	return class, payload, true
}

// parseResults 解析 result ("," result)*
func (p *parser) parseResults() ([]Field, bool) {
	var fields []Field
	for {
		field, ok := p.parseResult()
		if !ok {
			return nil, false
		}
		fields = append(fields, field)
		if !p.eat(',') {
			break
		}
	}
	return fields, true
}

// parseResult 解析 variable "=" value
func (p *parser) parseResult() (Field, bool) {
	start := p.i
	for !p.done() && p.s[p.i] != '=' {
		c := p.s[p.i]
		if c == ',' || c == '{' || c == '[' || c == '}' || c == ']' {
			return Field{}, false
		}
		p.i++
	}
	if p.done() || p.i == start {
		return Field{}, false
	}
	name := p.s[start:p.i]
	p.i++ // '='
	value, ok := p.parseValue()
	if !ok {
		return Field{}, false
	}
	return Field{Name: name, Value: value}, true
}

// parseValue 解析 c-string | tuple | list
func (p *parser) parseValue() (Value, bool) {
	switch p.peek() {
	case '"':
		text, ok := p.parseCString()
		if !ok {
			return Value{}, false
		}
		return Value{Kind: ConstValue, Const: text}, true
	case '{':
		return p.parseTuple()
	case '[':
		return p.parseList()
	default:
		// 个别gdb版本会输出未加引号的常量，宽松处理
		start := p.i
		for !p.done() {
			c := p.s[p.i]
			if c == ',' || c == '}' || c == ']' {
				break
			}
			p.i++
		}
		if p.i == start {
			return Value{}, false
		}
		return Value{Kind: ConstValue, Const: p.s[start:p.i]}, true
	}
}

func (p *parser) parseTuple() (Value, bool) {
	p.i++ // '{'
	value := Value{Kind: TupleValue}
	if p.eat('}') {
		return value, true
	}
	fields, ok := p.parseResults()
	if !ok {
		return Value{}, false
	}
	if !p.eat('}') {
		return Value{}, false
	}
	value.Fields = fields
	return value, true
}

// parseList 列表元素可以是value，也可以是key=value
// key=value元素被包装为单字段tuple，例如stack=[frame={...},frame={...}]。
func (p *parser) parseList() (Value, bool) {
	p.i++ // '['
	value := Value{Kind: ListValue}
	if p.eat(']') {
		return value, true
	}
	for {
		if isResultAhead(p.s[p.i:]) {
			field, ok := p.parseResult()
			if !ok {
				return Value{}, false
			}
			value.Items = append(value.Items, Value{Kind: TupleValue, Fields: []Field{field}})
		} else {
			item, ok := p.parseValue()
			if !ok {
				return Value{}, false
			}
			value.Items = append(value.Items, item)
		}
		if p.eat(']') {
			return value, true
		}
		if !p.eat(',') {
			return Value{}, false
		}
	}
}

// isResultAhead 判断列表元素是value还是key=value
func isResultAhead(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '=' {
			return i > 0
		}
		if c == '"' || c == '{' || c == '[' || c == ',' || c == ']' {
			return false
		}
	}
	return false
}

// parseCString 解析带转义的c-string
func (p *parser) parseCString() (string, bool) {
	if !p.eat('"') {
		return "", false
	}
	var b strings.Builder
	for !p.done() {
		c := p.s[p.i]
		p.i++
		switch c {
		case '"':
			return b.String(), true
		case '\\':
			if p.done() {
				return "", false
			}
			e := p.s[p.i]
			p.i++
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			case '0', '1', '2', '3', '4', '5', '6', '7':
				// 八进制转义，最多三位
				n := int(e - '0')
				for j := 0; j < 2 && !p.done(); j++ {
					d := p.s[p.i]
					if d < '0' || d > '7' {
						break
					}
					n = n*8 + int(d-'0')
					p.i++
				}
				b.WriteByte(byte(n))
			default:
				b.WriteByte('\\')
				b.WriteByte(e)
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", false
}

// parseStreamText 流记录正文，规范要求是c-string，个别实现会省略引号
func (p *parser) parseStreamText() string {
	if p.peek() == '"' {
		if text, ok := p.parseCString(); ok {
			return text
		}
	}
	return p.s[p.i:]
}
