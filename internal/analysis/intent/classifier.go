package intent

import "strings"

// Kind 表示消息被识别出的用途。
type Kind string

const (
	Query        Kind = "query"
	Introduction Kind = "introduction"
)

// Intent 是对一条消息的分类结果。Text 仅在 Query 时携带原始文本。
type Intent struct {
	Kind Kind
	Text string
}

// DefaultTriggers 是请求机器人自我介绍的默认触发词。
var DefaultTriggers = []string{"介紹", "你是誰"}

// Classifier 通过触发词子串匹配识别介绍请求，区分大小写。
type Classifier struct {
	triggers []string
}

// NewClassifier 使用给定触发词创建分类器，空字符串会被忽略。
func NewClassifier(triggers []string) *Classifier {
	filtered := make([]string, 0, len(triggers))
	for _, trigger := range triggers {
		if trigger == "" {
			continue
		}
		filtered = append(filtered, trigger)
	}
	return &Classifier{triggers: filtered}
}

// Classify 对消息进行分类。任意一个触发词命中即视为介绍请求。
func (c *Classifier) Classify(text string) Intent {
	for _, trigger := range c.triggers {
		if strings.Contains(text, trigger) {
			return Intent{Kind: Introduction}
		}
	}
	return Intent{Kind: Query, Text: text}
}

// Triggers 返回分类器使用的触发词副本。
func (c *Classifier) Triggers() []string {
	return append([]string(nil), c.triggers...)
}

var defaultClassifier = NewClassifier(DefaultTriggers)

// Classify 使用默认触发词进行分类。
func Classify(text string) Intent {
	return defaultClassifier.Classify(text)
}
