package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Messages 汇总所有面向用户的固定文案与介绍触发词。
type Messages struct {
	Introduction         string   `toml:"introduction"`
	QuotaExceeded        string   `toml:"quota_exceeded"`
	BackendFailure       string   `toml:"backend_failure"`
	UnexpectedFailure    string   `toml:"unexpected_failure"`
	NoAnswer             string   `toml:"no_answer"`
	DispatchFailure      string   `toml:"dispatch_failure"`
	LanguageSuffix       string   `toml:"language_suffix"`
	IntroductionTriggers []string `toml:"introduction_triggers"`
}

const defaultSystemPrompt = "你是彰化基督教醫院內分泌暨新陳代謝科的衛教小助理，請以正體中文、簡潔且友善的語氣回答病友的衛教問題，並提醒使用者回答內容僅供參考。"

// DefaultMessages 返回线上使用的正体中文默认文案。
func DefaultMessages() Messages {
	return Messages{
		Introduction: "我是彰化基督教醫院內分泌暨新陳代謝科的衛教小助理，可以回答糖尿病、甲狀腺等內分泌相關的衛教問題。" +
			"我的回答由 OpenAI 大型語言模型產生，僅供參考，無法取代醫師的診斷與治療，如有身體不適請儘速就醫。",
		QuotaExceeded:        "您好：您今天的提問次數已達上限，請明天再來詢問，謝謝您的使用。",
		BackendFailure:       "抱歉，我無法處理您的請求，請稍後再試。",
		UnexpectedFailure:    "系統出現錯誤，請稍後再試。",
		NoAnswer:             "抱歉，我目前找不到合適的答案，請換個方式再問一次。",
		DispatchFailure:      "處理訊息時發生錯誤，請稍後重試。",
		LanguageSuffix:       "。請用中文回答。",
		IntroductionTriggers: []string{"介紹", "你是誰"},
	}
}

// LoadMessages 以默认文案为基础，叠加 TOML 文件中出现的字段。path 为空时直接返回默认值。
func LoadMessages(path string) (Messages, error) {
	messages := DefaultMessages()
	if path == "" {
		return messages, nil
	}

	md, err := toml.DecodeFile(path, &messages)
	if err != nil {
		return Messages{}, fmt.Errorf("failed to decode messages file %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return Messages{}, fmt.Errorf("unknown keys in messages file %s: %s", path, strings.Join(keys, ", "))
	}

	if err := messages.Validate(); err != nil {
		return Messages{}, fmt.Errorf("invalid messages file %s: %w", path, err)
	}
	return messages, nil
}

// Validate 确保每条回复文案都非空，保证每个事件都能得到一条回复。
func (m Messages) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"introduction", m.Introduction},
		{"quota_exceeded", m.QuotaExceeded},
		{"backend_failure", m.BackendFailure},
		{"unexpected_failure", m.UnexpectedFailure},
		{"no_answer", m.NoAnswer},
		{"dispatch_failure", m.DispatchFailure},
	}

	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("%s must not be empty", field.key)
		}
	}
	return nil
}
