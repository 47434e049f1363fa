// Package mode 根据问题文本判断回答风格
package mode

import "strings"

// Mode 回答风格
type Mode string

const (
	Assignment Mode = "assignment"
	Notes      Mode = "notes"
	Exam       Mode = "exam"
	General    Mode = "general"
)

// 按顺序匹配，先命中者生效
var rules = []struct {
	keywords []string
	mode     Mode
}{
	{[]string{"assignment", "homework"}, Assignment},
	{[]string{"notes", "study"}, Notes},
	{[]string{"exam", "test", "quiz"}, Exam},
}

// Classify 大小写不敏感的子串匹配，无命中时返回 General
func Classify(text string) Mode {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.mode
			}
		}
	}
	return General
}

// Instruction 对应风格的写作提示
func (m Mode) Instruction() string {
	switch m {
	case Assignment:
		return "Structure the answer like a well organised assignment response with an introduction, key points and a short conclusion."
	case Notes:
		return "Write concise revision notes with headings and bullet points."
	case Exam:
		return "Answer the way an examiner expects: precise definitions, key facts first, and likely exam points highlighted."
	default:
		return "Give a clear, friendly explanation."
	}
}
