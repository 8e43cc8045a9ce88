package source

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
)

// VariableInfo 一个局部变量或参数的声明信息
type VariableInfo struct {
	Name string
	Type string
	// Line 声明所在行，从1开始
	Line int
}

// FunctionInfo 一个函数和它声明的所有变量
type FunctionInfo struct {
	Name      string
	Line      int
	Variables []VariableInfo
}

// ParseSource 解析C/C++源码，返回每个函数及其声明的变量
// gdb列出的是整个函数作用域的变量，包括当前行还没执行到的声明，
// 调用方用这里的行号信息过滤出已经声明的部分。
func ParseSource(code string) ([]FunctionInfo, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(cpp.GetLanguage())

	src := []byte(code)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse source fail: %w", err)
	}
	defer tree.Close()

	var functions []FunctionInfo
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		if node.Type() == "function_definition" {
			if info, ok := parseFunction(node, src); ok {
				functions = append(functions, info)
			}
			return
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i))
		}
	}
	walk(tree.RootNode())
	return functions, nil
}

// VisibleVariables 返回函数中在line之前已经声明的变量名
// 找不到函数时返回nil，调用方应放弃过滤直接使用完整列表。
func VisibleVariables(functions []FunctionInfo, function string, line int) []string {
	for i := range functions {
		if functions[i].Name != function {
			continue
		}
		names := make([]string, 0, len(functions[i].Variables))
		for _, v := range functions[i].Variables {
			if v.Line < line {
				names = append(names, v.Name)
			}
		}
		return names
	}
	return nil
}

func parseFunction(node *sitter.Node, src []byte) (FunctionInfo, bool) {
	fnDeclarator := functionDeclarator(node.ChildByFieldName("declarator"))
	if fnDeclarator == nil {
		return FunctionInfo{}, false
	}
	nameNode := identifierOf(fnDeclarator.ChildByFieldName("declarator"))
	if nameNode == nil {
		return FunctionInfo{}, false
	}

	info := FunctionInfo{
		Name: nameNode.Content(src),
		Line: int(nameNode.StartPoint().Row + 1),
	}
	seen := make(map[string]bool)
	collectParameters(fnDeclarator.ChildByFieldName("parameters"), src, seen, &info.Variables)
	if body := node.ChildByFieldName("body"); body != nil {
		collectDeclarations(body, src, seen, &info.Variables)
	}
	return info, true
}

// functionDeclarator 向内找到function_declarator节点
// 返回指针的函数外层会多包一层pointer_declarator。
func functionDeclarator(node *sitter.Node) *sitter.Node {
	for node != nil {
		if node.Type() == "function_declarator" {
			return node
		}
		node = node.ChildByFieldName("declarator")
	}
	return nil
}

// identifierOf 向内剥掉指针、数组等修饰，找到标识符节点
func identifierOf(node *sitter.Node) *sitter.Node {
	for node != nil && node.Type() != "identifier" {
		node = node.ChildByFieldName("declarator")
	}
	return node
}

func collectParameters(parameters *sitter.Node, src []byte, seen map[string]bool, out *[]VariableInfo) {
	if parameters == nil {
		return
	}
	for i := 0; i < int(parameters.NamedChildCount()); i++ {
		param := parameters.NamedChild(i)
		if param.Type() != "parameter_declaration" {
			continue
		}
		appendVariable(param.ChildByFieldName("declarator"), param.ChildByFieldName("type"), src, seen, out)
	}
}

// collectDeclarations 收集函数体内的所有变量声明
func collectDeclarations(node *sitter.Node, src []byte, seen map[string]bool, out *[]VariableInfo) {
	if node.Type() == "declaration" {
		typeNode := node.ChildByFieldName("type")
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			switch child.Type() {
			case "init_declarator":
				appendVariable(child.ChildByFieldName("declarator"), typeNode, src, seen, out)
			case "identifier", "array_declarator", "pointer_declarator", "reference_declarator":
				appendVariable(child, typeNode, src, seen, out)
			}
		}
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collectDeclarations(node.Child(i), src, seen, out)
	}
}

func appendVariable(declarator *sitter.Node, typeNode *sitter.Node, src []byte, seen map[string]bool, out *[]VariableInfo) {
	name := declaratorName(declarator, src)
	if name == "" || seen[name] {
		return
	}
	seen[name] = true
	v := VariableInfo{
		Name: name,
		Line: int(declarator.StartPoint().Row + 1),
	}
	if typeNode != nil {
		v.Type = typeNode.Content(src)
	}
	*out = append(*out, v)
}

// declaratorName 从声明器文本里提取变量名
// 数组声明取[之前的部分，指针和引用声明取修饰符之后的部分。
func declaratorName(node *sitter.Node, src []byte) string {
	if node == nil {
		return ""
	}
	text := node.Content(src)
	if idx := strings.Index(text, "["); idx > 0 {
		return strings.TrimSpace(text[:idx])
	}
	if idx := strings.LastIndex(text, "*"); idx >= 0 && idx < len(text)-1 {
		return strings.TrimSpace(text[idx+1:])
	}
	if idx := strings.LastIndex(text, "&"); idx >= 0 && idx < len(text)-1 {
		return strings.TrimSpace(text[idx+1:])
	}
	return strings.TrimSpace(text)
}
