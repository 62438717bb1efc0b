// Package mention finds trigger-prefixed references ("@Ana", "#general") in
// message text against a roster of nameable entities.
//
// Everything here is pure: the same (text, roster, trigger) always yields the
// same result and nothing is cached between calls.
package mention

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Trigger characters
const (
	UserTrigger    = '@'
	ChannelTrigger = '#'
)

// Entity is a nameable roster entry: a channel member or a channel
type Entity struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

// Pattern matches trigger+name for any roster name, case-insensitively
type Pattern struct {
	trigger rune
	re      *regexp.Regexp
}

// BuildTriggerPattern builds a matcher for trigger followed by any roster name.
// Names are tried longest first so "Ana" never shadows "Anabel"; equal lengths
// keep roster order. Returns nil when the roster holds no usable name.
func BuildTriggerPattern(roster []Entity, trigger rune) *Pattern {
	// (?i) folds single runes only, so spellings that differ by a multi-rune
	// fold ("Straße", "STRASSE") each keep their own alternative.
	names := make([]string, 0, len(roster))
	seen := make(map[string]struct{}, len(roster))
	for _, e := range roster {
		if e.Name == "" {
			continue
		}
		key := strings.ToLower(e.Name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, e.Name)
	}
	if len(names) == 0 {
		return nil
	}

	sort.SliceStable(names, func(i, j int) bool {
		return utf8.RuneCountInString(names[i]) > utf8.RuneCountInString(names[j])
	})

	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = regexp.QuoteMeta(name)
	}
	expr := "(?i)" + regexp.QuoteMeta(string(trigger)) + "(" + strings.Join(quoted, "|") + ")"

	return &Pattern{
		trigger: trigger,
		re:      regexp.MustCompile(expr),
	}
}

// Trigger returns the trigger character the pattern was built for
func (p *Pattern) Trigger() rune {
	return p.trigger
}

// Segment is a piece of text: plain, or a mention span. Start and End are byte
// offsets into the original text.
type Segment struct {
	Text      string
	Start     int
	End       int
	IsMention bool
	// Entity is the roster entry the mention resolved to; nil when the matched
	// name no longer belongs to anyone on the roster.
	Entity *Entity
}

// Segment splits text into plain and mention segments, resolving each matched
// name against roster. roster may differ from the roster the pattern was built
// from, e.g. when a mentioned member has since left the channel.
func (p *Pattern) Segment(text string, roster []Entity) []Segment {
	if text == "" {
		return []Segment{{Text: ""}}
	}
	if p == nil {
		return []Segment{{Text: text, End: len(text)}}
	}

	matches := p.re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return []Segment{{Text: text, End: len(text)}}
	}

	index := indexByName(roster)
	segments := make([]Segment, 0, len(matches)*2+1)
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if start > last {
			segments = append(segments, Segment{Text: text[last:start], Start: last, End: start})
		}
		seg := Segment{Text: text[start:end], Start: start, End: end, IsMention: true}
		if e, ok := index.resolve(text[m[2]:m[3]]); ok {
			seg.Entity = &e
		}
		segments = append(segments, seg)
		last = end
	}
	if last < len(text) {
		segments = append(segments, Segment{Text: text[last:], Start: last, End: len(text)})
	}
	return segments
}

// Entities returns the distinct resolved entities in order of first appearance
func (p *Pattern) Entities(text string, roster []Entity) []Entity {
	result := make([]Entity, 0)
	seen := make(map[string]struct{})
	for _, seg := range p.Segment(text, roster) {
		if seg.Entity == nil {
			continue
		}
		if _, ok := seen[seg.Entity.Id]; ok {
			continue
		}
		seen[seg.Entity.Id] = struct{}{}
		result = append(result, *seg.Entity)
	}
	return result
}

// SegmentText splits text into plain and mention segments against roster
func SegmentText(text string, roster []Entity, trigger rune) []Segment {
	return BuildTriggerPattern(roster, trigger).Segment(text, roster)
}

// ExtractMentionedEntities returns the roster entities referenced in text,
// distinct by Id, in order of first appearance.
func ExtractMentionedEntities(text string, roster []Entity, trigger rune) []Entity {
	return BuildTriggerPattern(roster, trigger).Entities(text, roster)
}

// nameIndex resolves a matched name to the first roster entry carrying it,
// preferring the exact spelling, then the lower-cased one, then the full fold
type nameIndex struct {
	exact  map[string]Entity
	lower  map[string]Entity
	fold   map[string]Entity
	folder cases.Caser
}

func indexByName(roster []Entity) *nameIndex {
	idx := &nameIndex{
		exact:  make(map[string]Entity, len(roster)),
		lower:  make(map[string]Entity, len(roster)),
		fold:   make(map[string]Entity, len(roster)),
		folder: cases.Fold(),
	}
	for _, e := range roster {
		if e.Name == "" {
			continue
		}
		putFirst(idx.exact, e.Name, e)
		putFirst(idx.lower, strings.ToLower(e.Name), e)
		putFirst(idx.fold, idx.folder.String(e.Name), e)
	}
	return idx
}

func putFirst(m map[string]Entity, key string, e Entity) {
	if _, ok := m[key]; !ok {
		m[key] = e
	}
}

func (idx *nameIndex) resolve(name string) (Entity, bool) {
	if e, ok := idx.exact[name]; ok {
		return e, true
	}
	if e, ok := idx.lower[strings.ToLower(name)]; ok {
		return e, true
	}
	e, ok := idx.fold[idx.folder.String(name)]
	return e, ok
}
