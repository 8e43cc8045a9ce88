package debugger

import (
	"strings"

	"github.com/fansqz/gdber/gdb"
	"github.com/fansqz/gdber/protocol"
)

// OutputUtil 解析gdb输出的工具，把mi记录的payload转成对外的结构
type OutputUtil struct {
}

func NewOutputUtil() *OutputUtil {
	return &OutputUtil{}
}

// ParseBreakpoint 解析断点信息，break-insert响应和breakpoint-created通知的payload结构相同
//
//	payload->{
//	 bkpt->{
//	   number -> 1
//	   type -> breakpoint
//	   disp -> keep
//	   enabled -> y
//	   func -> main
//	   file -> /var/fanCode/tempDir/main.c
//	   fullname -> /var/fanCode/tempDir/main.c
//	   line -> 43
//	   times -> 0
//	   original-location -> main.c:43
//	 }
//	}
func (u *OutputUtil) ParseBreakpoint(payload gdb.Value) (protocol.Breakpoint, bool) {
	bkpt, ok := payload.GetValue("bkpt")
	if !ok {
		return protocol.Breakpoint{}, false
	}
	id := bkpt.GetInt("number")
	if id == 0 {
		return protocol.Breakpoint{}, false
	}
	file := bkpt.GetString("fullname")
	if file == "" {
		file = bkpt.GetString("file")
	}
	return protocol.Breakpoint{
		ID:   id,
		File: file,
		Line: bkpt.GetInt("line"),
	}, true
}

// ParseStackFrames 解析栈帧列表输出
//
//	payload->{
//	 stack->[
//	  frame->{
//	   level->0
//	   addr->0x000055555540081b
//	   func->main
//	   file->/var/fanCode/tempDir/main.c
//	   fullname->/var/fanCode/tempDir/main.c
//	   line->44
//	  }
//	 ]
//	}
func (u *OutputUtil) ParseStackFrames(payload gdb.Value) []protocol.StackFrame {
	answer := make([]protocol.StackFrame, 0, 5)
	for _, item := range payload.GetList("stack") {
		frame, ok := item.GetValue("frame")
		if !ok {
			continue
		}
		file := frame.GetString("fullname")
		if file == "" {
			file = frame.GetString("file")
		}
		answer = append(answer, protocol.StackFrame{
			Level:    frame.GetInt("level"),
			Address:  frame.GetString("addr"),
			Function: frame.GetString("func"),
			File:     file,
			Line:     frame.GetInt("line"),
		})
	}
	return answer
}

// ParseVariables 解析栈帧变量列表输出，兼容variables和locals两种键名
//
//	payload->{
//	 variables->[
//	  {
//	   name->root
//	   type->struct TreeNode *
//	   value->0x555555602260
//	  }
//	 ]
//	}
func (u *OutputUtil) ParseVariables(payload gdb.Value) []protocol.Variable {
	items := payload.GetList("variables")
	if items == nil {
		items = payload.GetList("locals")
	}
	answer := make([]protocol.Variable, 0, 10)
	for _, v := range items {
		name := v.GetString("name")
		if name == "" {
			continue
		}
		variable := protocol.Variable{
			Name: name,
			Type: v.GetString("type"),
		}
		if v.Has("value") {
			variable.Value = v.GetString("value")
		}
		answer = append(answer, variable)
	}
	return answer
}

// ParseVarCreate 解析var-create响应
//
//	payload->{
//	  name -> var1
//	  numchild -> 3
//	  value -> {...}
//	  type -> struct TreeNode
//	  has_more -> 0
//	}
func (u *OutputUtil) ParseVarCreate(payload gdb.Value, expression string) (protocol.VarObjectInfo, bool) {
	name := payload.GetString("name")
	if name == "" {
		return protocol.VarObjectInfo{}, false
	}
	numChild := payload.GetInt("numchild")
	if numChild == 0 {
		numChild = payload.GetInt("has_more")
	}
	return protocol.VarObjectInfo{
		Name:       name,
		Expression: expression,
		Value:      payload.GetString("value"),
		Type:       payload.GetString("type"),
		NumChild:   numChild,
	}, true
}

// ParseVarChildren 解析var-list-children响应
//
//	payload->{
//	 numchild->3
//	 children->[
//	  child->{
//	   name->var1.left
//	   exp->left
//	   numchild->3
//	   value->0x0
//	   type->struct TreeNode *
//	  }
//	 ]
//	}
func (u *OutputUtil) ParseVarChildren(payload gdb.Value) []protocol.VarObjectInfo {
	answer := make([]protocol.VarObjectInfo, 0, 10)
	for _, item := range payload.GetList("children") {
		child, ok := item.GetValue("child")
		if !ok {
			continue
		}
		name := child.GetString("name")
		if name == "" {
			continue
		}
		answer = append(answer, protocol.VarObjectInfo{
			Name:       name,
			Expression: child.GetString("exp"),
			Value:      child.GetString("value"),
			Type:       child.GetString("type"),
			NumChild:   child.GetInt("numchild"),
		})
	}
	return answer
}

// ParseMemory 解析data-read-memory-bytes响应，多段结果拼接成一块
//
//	payload->{
//	 memory->[
//	  {
//	   begin->0x00007fffffffe0a0
//	   offset->0x0000000000000000
//	   end->0x00007fffffffe0b0
//	   contents->48656c6c6f20576f726c6400
//	  }
//	 ]
//	}
func (u *OutputUtil) ParseMemory(payload gdb.Value) (protocol.MemoryBlock, bool) {
	blocks := payload.GetList("memory")
	if len(blocks) == 0 {
		return protocol.MemoryBlock{}, false
	}
	var contents strings.Builder
	for _, b := range blocks {
		contents.WriteString(b.GetString("contents"))
	}
	return protocol.MemoryBlock{
		Address:  blocks[0].GetString("begin"),
		Contents: contents.String(),
	}, true
}

// ParseFrameLocation 解析stopped事件中的当前位置
//
//	payload->{
//	 reason->breakpoint-hit
//	 disp->keep
//	 bkptno->1
//	 frame->{
//	  addr -> 0x0000555555400806
//	  func -> main
//	  file -> /var/fanCode/tempDir/main.c
//	  fullname -> /var/fanCode/tempDir/main.c
//	  line -> 43
//	 }
//	 thread-id->1
//	 stopped-threads->all
//	}
func (u *OutputUtil) ParseFrameLocation(payload gdb.Value) *protocol.SourceLocation {
	frame, ok := payload.GetValue("frame")
	if !ok {
		return nil
	}
	file := frame.GetString("fullname")
	if file == "" {
		file = frame.GetString("file")
	}
	if file == "" && frame.GetInt("line") == 0 {
		return nil
	}
	return &protocol.SourceLocation{
		File:     file,
		Line:     frame.GetInt("line"),
		Function: frame.GetString("func"),
	}
}
