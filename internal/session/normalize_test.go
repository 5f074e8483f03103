// internal/session/normalize_test.go
package session

import (
	"strings"
	"testing"
)

// TestNormalizeContentUnescapesQuotes 还原字面量转义的引号
func TestNormalizeContentUnescapesQuotes(t *testing.T) {
	input := `她说：\"你来了。\"`
	result := NormalizeContent(input)

	if strings.Contains(result, `\"`) {
		t.Errorf("结果仍包含转义引号: %q", result)
	}
	if !strings.Contains(result, `"你来了。"`) {
		t.Errorf("引号未被还原: %q", result)
	}
}

// TestNormalizeContentIsolatesDialogue 对话片段独立成段
func TestNormalizeContentIsolatesDialogue(t *testing.T) {
	input := `他走近一步。"别走。"她停下了脚步。`
	result := NormalizeContent(input)

	parts := strings.Split(result, "\n\n")
	if len(parts) != 3 {
		t.Fatalf("期望3个段落，得到%d个: %q", len(parts), result)
	}
	if parts[1] != `"别走。"` {
		t.Errorf("对话段 = %q, 期望 %q", parts[1], `"别走。"`)
	}
}

// TestNormalizeContentCollapsesBlankLines 连续空行折叠为一个段落分隔
func TestNormalizeContentCollapsesBlankLines(t *testing.T) {
	input := "第一段\n\n\n\n第二段\n \n\t\n第三段"
	result := NormalizeContent(input)

	expected := "第一段\n\n第二段\n\n第三段"
	if result != expected {
		t.Errorf("结果 = %q, 期望 %q", result, expected)
	}
}

// TestNormalizeContentIdempotent 重复规整不产生进一步变化
func TestNormalizeContentIdempotent(t *testing.T) {
	inputs := []string{
		`她说：\"你来了。\"我点点头。`,
		`他走近一步。"别走。"她停下了脚步。"我不走。"`,
		"普通段落\n\n\n另一段",
		"",
		`"开头就是对话。"然后是叙述。`,
		"   前后有空白   ",
		`她写下了\\"再见\\"两个字。`,
		`\"开头就是转义引号。\"`,
	}

	for _, input := range inputs {
		once := NormalizeContent(input)
		twice := NormalizeContent(once)
		if once != twice {
			t.Errorf("规整不幂等:\n输入: %q\n一次: %q\n两次: %q", input, once, twice)
		}
	}
}

// TestNormalizeContentKeepsEscapedBackslash 反斜杠本身被转义时引号保持原样
func TestNormalizeContentKeepsEscapedBackslash(t *testing.T) {
	input := `她写下了\\"再见\\"两个字。`
	result := NormalizeContent(input)

	if !strings.Contains(result, `\\"`) {
		t.Errorf("双反斜杠后的引号不应被还原: %q", result)
	}
	if NormalizeContent(result) != result {
		t.Errorf("二次规整改变了结果: %q", result)
	}
}

// TestNormalizeContentEmpty 空输入原样返回
func TestNormalizeContentEmpty(t *testing.T) {
	if NormalizeContent("") != "" {
		t.Error("空字符串应返回空字符串")
	}
}
