package gdb

import (
	"strconv"
	"strings"
)

// EncodeCommand 把操作和参数编码成一行MI命令
// token大于0时作为命令前缀，用于结果记录的对应。
// 例如 EncodeCommand(5, "break-insert", "main.c:10") -> `5-break-insert main.c:10`
func EncodeCommand(token int64, operation string, args ...string) string {
	var b strings.Builder
	if token > 0 {
		b.WriteString(strconv.FormatInt(token, 10))
	}
	b.WriteByte('-')
	b.WriteString(operation)
	for _, arg := range args {
		b.WriteByte(' ')
		b.WriteString(quoteArg(arg))
	}
	return b.String()
}

// quoteArg 参数引用，防止参数内容被gdb当成命令结构解析
// 包含空白、引号、反斜杠或控制字符的参数会被编码成带转义的c-string，
// 这是命令注入的唯一防线，参数永远不会被直接拼进命令文本。
func quoteArg(arg string) string {
	if arg == "" {
		return `""`
	}
	if !needsQuote(arg) {
		return arg
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(arg); i++ {
		c := arg[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func needsQuote(arg string) bool {
	for i := 0; i < len(arg); i++ {
		c := arg[i]
		if c == ' ' || c == '"' || c == '\\' || c < 0x20 {
			return true
		}
	}
	return false
}
