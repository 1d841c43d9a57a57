package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		accept string
		want   language.Tag
	}{
		{"zh-CN,zh;q=0.9,en;q=0.8", language.Chinese},
		{"en-US,en;q=0.9", language.English},
		{"fr-FR", language.Chinese}, // 无法匹配时回退到 fallback
		{"", language.Chinese},
		{"!!!", language.Chinese},
	}
	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.accept, language.Chinese))
		})
	}
}

func TestParse(t *testing.T) {
	assert.Equal(t, language.Chinese, Parse("zh"))
	assert.Equal(t, language.English, Parse("en"))
	assert.Equal(t, language.English, Parse("unknown"))
}

func TestLocalizer_T(t *testing.T) {
	en := New(language.English)
	zh := New(language.Chinese)

	assert.Equal(t, "Please enter a prompt.", en.T(KeyEmptyPrompt))
	assert.Equal(t, "请输入提示词。", zh.T(KeyEmptyPrompt))
	assert.Equal(t, language.Chinese, zh.Tag())

	// 每个键在每种语言下都有文案
	for tag, entries := range messages {
		l := New(tag)
		for key := range messages[language.English] {
			_, ok := entries[key]
			assert.True(t, ok, "%s missing %s", tag, key)
			assert.NotEqual(t, string(key), l.T(key))
		}
	}
}
