package choices

import "strings"

// synonymGroups clusters equivalent category concepts across the phrasings
// (and languages) real directory sites use. Groups are bidirectional: any
// member resolves to any other member of its group.
var synonymGroups = [][]string{
	{"ai", "ai tools", "artificial intelligence", "machine learning", "ml", "人工智能", "ai工具", "智能工具"},
	{"productivity", "efficiency", "productivity tools", "效率", "效率工具", "生产力"},
	{"developer tools", "dev tools", "development", "programming", "coding", "开发者工具", "开发工具", "编程"},
	{"design", "design tools", "ui", "ux", "graphics", "设计", "设计工具"},
	{"marketing", "seo", "advertising", "growth", "营销", "市场营销", "推广"},
	{"writing", "copywriting", "content", "content creation", "写作", "内容创作", "文案"},
	{"education", "learning", "e-learning", "courses", "教育", "学习"},
	{"finance", "fintech", "money", "accounting", "金融", "财务", "理财"},
	{"business", "b2b", "enterprise", "saas", "商业", "企业", "商务"},
	{"image", "image generation", "photo", "pictures", "图像", "图片", "图像生成"},
	{"video", "video editing", "video generation", "视频", "视频编辑", "视频生成"},
	{"audio", "music", "voice", "speech", "text to speech", "音频", "音乐", "语音"},
	{"chatbot", "chat", "assistant", "conversational ai", "聊天机器人", "对话", "助手"},
	{"analytics", "data", "data analysis", "statistics", "数据分析", "分析", "数据"},
	{"automation", "workflow", "no code", "nocode", "自动化", "工作流", "无代码"},
	{"social media", "social", "community", "社交", "社交媒体", "社区"},
	{"e-commerce", "ecommerce", "shopping", "store", "电商", "购物", "电子商务"},
	{"health", "fitness", "wellness", "健康", "健身"},
	{"games", "gaming", "entertainment", "游戏", "娱乐"},
	{"translation", "language", "languages", "翻译", "语言"},
	{"search", "search engine", "discovery", "搜索", "搜索引擎"},
	{"security", "privacy", "安全", "隐私"},
	{"other", "others", "misc", "miscellaneous", "其他", "其它"},
}

// synonymIndex maps a normalized term to the members of its group.
var synonymIndex = buildSynonymIndex()

func buildSynonymIndex() map[string][]string {
	idx := make(map[string][]string)
	for _, group := range synonymGroups {
		for _, term := range group {
			key := normalize(term)
			idx[key] = append(idx[key], group...)
		}
	}
	return idx
}

// synonymsOf returns the group members for a term, or nil when the term is
// not in the table.
func synonymsOf(term string) []string {
	return synonymIndex[normalize(term)]
}

// normalize lower-cases and collapses separator runs so table lookups are
// insensitive to spacing and hyphenation.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastSep := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '-', '_', '/':
			if !lastSep && b.Len() > 0 {
				b.WriteRune(' ')
			}
			lastSep = true
		default:
			b.WriteRune(r)
			lastSep = false
		}
	}
	return strings.TrimSpace(b.String())
}
