package i18n

import (
	"golang.org/x/text/language"
)

// FunctionText holds the localized default texts for one built-in function.
type FunctionText struct {
	Title       string
	Description string
	Prompt      string
}

// Catalog is the typed text catalog for one display language.
type Catalog struct {
	Language  string
	Functions map[string]FunctionText
}

// DefaultLanguage is used when no supported language matches.
const DefaultLanguage = "en"

var supported = []language.Tag{
	language.English,
	language.SimplifiedChinese,
}

var matcher = language.NewMatcher(supported)

var catalogs = map[string]Catalog{
	"en": {
		Language: "en",
		Functions: map[string]FunctionText{
			"translate": {
				Title:       "Translate",
				Description: "Translate the selected text",
				Prompt:      "Translate the following text into {targetLang}. Return only the translation:\n\n{text}",
			},
			"polish": {
				Title:       "Polish",
				Description: "Improve wording and flow",
				Prompt:      "Polish the following text, keeping its meaning and language. Return only the improved text:\n\n{text}",
			},
			"explain": {
				Title:       "Explain",
				Description: "Explain the selected text",
				Prompt:      "Explain the following text in plain language:\n\n{text}",
			},
			"summarize": {
				Title:       "Summarize",
				Description: "Summarize the selected text",
				Prompt:      "Summarize the following text in a few sentences:\n\n{text}",
			},
			"chat": {
				Title:       "Chat",
				Description: "Start a conversation about the selection",
				Prompt:      "{text}",
			},
			"copy": {
				Title:       "Copy",
				Description: "Copy the selected text",
			},
			"search": {
				Title:       "Search",
				Description: "Search the web for the selection",
			},
			"open": {
				Title:       "Open",
				Description: "Open the selection as a link",
			},
			"share": {
				Title:       "Share",
				Description: "Share the selected text",
			},
			"highlight": {
				Title:       "Highlight",
				Description: "Highlight the selection on the page",
			},
			"collect": {
				Title:       "Collect",
				Description: "Save the selection to your collection",
			},
		},
	},
	"zh-CN": {
		Language: "zh-CN",
		Functions: map[string]FunctionText{
			"translate": {
				Title:       "翻译",
				Description: "翻译选中的文本",
				Prompt:      "将以下文本翻译为{targetLang}，只返回译文：\n\n{text}",
			},
			"polish": {
				Title:       "润色",
				Description: "改进措辞与表达",
				Prompt:      "润色以下文本，保持原意和语言，只返回润色后的文本：\n\n{text}",
			},
			"explain": {
				Title:       "解释",
				Description: "解释选中的文本",
				Prompt:      "用通俗的语言解释以下文本：\n\n{text}",
			},
			"summarize": {
				Title:       "总结",
				Description: "总结选中的文本",
				Prompt:      "用几句话总结以下文本：\n\n{text}",
			},
			"chat": {
				Title:       "对话",
				Description: "围绕选中内容开始对话",
				Prompt:      "{text}",
			},
			"copy": {
				Title:       "复制",
				Description: "复制选中的文本",
			},
			"search": {
				Title:       "搜索",
				Description: "用选中内容搜索",
			},
			"open": {
				Title:       "打开",
				Description: "将选中内容作为链接打开",
			},
			"share": {
				Title:       "分享",
				Description: "分享选中的文本",
			},
			"highlight": {
				Title:       "高亮",
				Description: "在页面上高亮选中内容",
			},
			"collect": {
				Title:       "收藏",
				Description: "将选中内容保存到收藏",
			},
		},
	},
}

// Match resolves an arbitrary BCP 47 tag (or loose language string) to a
// supported catalog language.
func Match(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return DefaultLanguage
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return DefaultLanguage
	}
	switch supported[idx] {
	case language.SimplifiedChinese:
		return "zh-CN"
	default:
		return DefaultLanguage
	}
}

// Lookup returns the catalog for lang, falling back to English.
func Lookup(lang string) Catalog {
	if c, ok := catalogs[lang]; ok {
		return c
	}
	return catalogs[Match(lang)]
}
