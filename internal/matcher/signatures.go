package matcher

import (
	"regexp"

	"github.com/formscout/formscout/api/schemas"
)

// Scoring weights. name/id hits outrank free-text attributes because authors
// rarely rename a field's wire name, while labels and placeholders get
// reworded and translated freely. The floor and ceiling are empirical
// tunables: a single high-reliability hit, or two free-text hits, clears the
// floor.
const (
	weightNameID      = 1.0
	weightLabel       = 0.7
	weightPlaceholder = 0.6
	weightAria        = 0.6

	shapeBonus        = 0.5
	coOccurrenceBonus = 0.5
	protocolHintBoost = 1.0

	DefaultMinScore     = 0.9
	DefaultScoreCeiling = 3.0
)

// pattern is one positive signal with its base weight.
type pattern struct {
	re     *regexp.Regexp
	weight float64
}

// signature describes how one standard field announces itself in the wild.
type signature struct {
	field    schemas.StandardField
	patterns []pattern
	// shapes is an optional control-shape hint; a matching field earns
	// shapeBonus. It never gates.
	shapes []schemas.ControlKind
	// excludes disqualify the signature outright, regardless of score.
	excludes []*regexp.Regexp
}

func pat(expr string, weight float64) pattern {
	return pattern{re: regexp.MustCompile("(?i)" + expr), weight: weight}
}

func excl(expr string) *regexp.Regexp {
	return regexp.MustCompile("(?i)" + expr)
}

// catalog holds every signature in StandardField enumeration order. The
// order is load-bearing: score ties resolve to the first signature reaching
// the maximum.
var catalog = []signature{
	{
		field: schemas.FieldSiteName,
		patterns: []pattern{
			pat(`site[_-]?name|app[_-]?name|product[_-]?name|project[_-]?name|tool[_-]?name|网站名|项目名|名称`, 1.0),
			pat(`^name$|^title$|\btitle\b`, 0.8),
		},
		excludes: []*regexp.Regexp{
			excl(`user[_-]?name|first[_-]?name|last[_-]?name|full[_-]?name|nick|company`),
		},
	},
	{
		field: schemas.FieldEmail,
		patterns: []pattern{
			pat(`e[_-]?mail|邮箱|电子邮件`, 1.0),
		},
		shapes: []schemas.ControlKind{schemas.ControlEmail},
	},
	{
		field: schemas.FieldSiteURL,
		patterns: []pattern{
			// (\b|_|-) instead of \b alone: Go regexp counts underscore as a
			// word character, and snake_case names are the common case here.
			pat(`(\b|_|-)url(\b|_|-)|web[_-]?site|home[_-]?page|网址|链接`, 1.0),
			pat(`(\b|_|-)link(\b|_|-)`, 0.8),
		},
		shapes: []schemas.ControlKind{schemas.ControlURL},
		excludes: []*regexp.Regexp{
			excl(`logo|image|icon|screenshot|avatar|favicon|video|github|twitter|facebook|linkedin|youtube`),
		},
	},
	{
		field: schemas.FieldCategory,
		patterns: []pattern{
			pat(`categor(y|ies)|分类|类别`, 1.0),
		},
		shapes: []schemas.ControlKind{schemas.ControlSelect, schemas.ControlCustomSelect},
	},
	{
		field: schemas.FieldTags,
		patterns: []pattern{
			pat(`(\b|_|-)tags?(\b|_|-)|标签|keywords?`, 1.0),
		},
		shapes: []schemas.ControlKind{schemas.ControlSelect, schemas.ControlCustomSelect},
	},
	{
		field: schemas.FieldTagline,
		patterns: []pattern{
			pat(`tag[_-]?line|slogan|sub[_-]?title|一句话|口号`, 1.0),
		},
	},
	{
		field: schemas.FieldShortDescription,
		patterns: []pattern{
			pat(`short[_-]?desc(ription)?|summary|brief|excerpt|简介|简短`, 1.0),
			pat(`(\b|_|-)intro(duction)?(\b|_|-)`, 0.8),
			pat(`(\b|_|-)desc(ription)?(\b|_|-)`, 0.8),
		},
		shapes: []schemas.ControlKind{schemas.ControlText, schemas.ControlContentEditable},
	},
	{
		field: schemas.FieldLongDescription,
		patterns: []pattern{
			pat(`long[_-]?desc(ription)?|full[_-]?desc(ription)?|details?|详细|描述`, 1.0),
			pat(`(\b|_|-)desc(ription)?(\b|_|-)`, 0.8),
			pat(`(\b|_|-)intro(duction)?(\b|_|-)`, 0.6),
		},
		shapes: []schemas.ControlKind{schemas.ControlTextarea},
	},
	{
		field: schemas.FieldLogo,
		patterns: []pattern{
			pat(`logo|徽标|图标`, 1.0),
			pat(`(\b|_|-)icon(\b|_|-)`, 0.8),
		},
		shapes: []schemas.ControlKind{schemas.ControlFile},
		excludes: []*regexp.Regexp{
			// "App Image" / "Product Image" phrasing belongs to screenshot.
			excl(`(app|product)[\s_-]*image`),
		},
	},
	{
		field: schemas.FieldScreenshot,
		patterns: []pattern{
			pat(`screen[\s_-]?shots?|截图|(app|product)[\s_-]*image|preview[\s_-]?image`, 1.0),
			pat(`(\b|_|-)images?(\b|_|-)`, 0.6),
			pat(`preview`, 0.6),
		},
		shapes: []schemas.ControlKind{schemas.ControlFile},
	},
}

var (
	introRe    = regexp.MustCompile(`(?i)\bintro(duction)?\b`)
	protocolRe = regexp.MustCompile(`https?://`)
	imageRe    = regexp.MustCompile(`(?i)image`)
	logoRe     = regexp.MustCompile(`(?i)logo`)
)
