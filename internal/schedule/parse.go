package schedule

import (
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	appLog "lockin/internal/log"
	"lockin/internal/model"
)

// Raw schedule text is expected to carry one activity per line in a
// "<start> <sep> <end> <label>" shape. Lines that do not match are
// silently skipped; an all-skipped input yields an empty result, which
// callers must treat as total parse failure.
const (
	// timePattern matches H:MM / HH:MM with an optional AM/PM marker.
	timePattern = `\d{1,2}:\d{2}\s*(?:[AaPp]\.?[Mm]\.?)?`

	// looseTimePattern additionally accepts bare-hour AM/PM forms such as
	// "7AM" or "11 pm". Used only as a fallback for page-oriented
	// documents whose extraction mangles colons or minutes.
	looseTimePattern = `\d{1,2}:\d{2}\s*(?:[AaPp]\.?[Mm]\.?)?|\d{1,2}\s*[AaPp]\.?[Mm]\.?`

	separatorPattern = `(?:-|–|—|~|to)`
)

var (
	lineRe = regexp.MustCompile(`^\s*(` + timePattern + `)\s*` + separatorPattern + `\s*(` + timePattern + `)\s+(\S.*?)\s*$`)

	// rowSpanRe finds the time span anywhere in concatenated row text. The
	// separator is optional there: spreadsheets commonly put start and end
	// in adjacent cells with nothing in between.
	rowSpanRe   = regexp.MustCompile(`(` + timePattern + `)\s*` + separatorPattern + `?\s*(` + timePattern + `)`)
	looseSpanRe = regexp.MustCompile(`(` + looseTimePattern + `)\s*` + separatorPattern + `\s*(` + looseTimePattern + `)`)

	// timeOnlyRe classifies a whole cell as "just a time", so it is not
	// mistaken for an activity label.
	timeOnlyRe = regexp.MustCompile(`^\s*(?:` + timePattern + `)\s*$`)
)

// Parse converts free-text schedule input into a list of blocks sorted by
// start time, with times normalized to zero-padded 24h "HH:MM". It never
// returns per-line diagnostics; an empty result means nothing matched.
func Parse(text string, classify Classifier) []model.ScheduleBlock {
	if classify == nil {
		classify = KeywordClassifier
	}

	blocks := make([]model.ScheduleBlock, 0)
	for _, line := range strings.Split(text, "\n") {
		m := lineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		b, ok := makeBlock(m[1], m[2], m[3], classify)
		if !ok {
			continue
		}
		blocks = append(blocks, b)
	}

	sortByStart(blocks)
	appLog.Debug("schedule parse completed", "block_count", len(blocks))
	return blocks
}

// ParseRows converts tabular input (e.g. spreadsheet rows) into blocks.
// Each row's cells are concatenated and scanned for a time span anywhere
// in the text; the label is whatever follows the span, or else the first
// non-time, non-empty cell.
func ParseRows(rows [][]string, classify Classifier) []model.ScheduleBlock {
	if classify == nil {
		classify = KeywordClassifier
	}

	blocks := make([]model.ScheduleBlock, 0)
	for _, cells := range rows {
		joined := strings.Join(cells, " ")
		loc := rowSpanRe.FindStringSubmatchIndex(joined)
		if loc == nil {
			continue
		}
		startTok := joined[loc[2]:loc[3]]
		endTok := joined[loc[4]:loc[5]]

		label := strings.TrimSpace(joined[loc[1]:])
		if label == "" {
			label = firstLabelCell(cells)
		}
		if label == "" {
			continue
		}

		b, ok := makeBlock(startTok, endTok, label, classify)
		if !ok {
			continue
		}
		blocks = append(blocks, b)
	}

	sortByStart(blocks)
	appLog.Debug("schedule row parse completed", "row_count", len(rows), "block_count", len(blocks))
	return blocks
}

// ParsePages converts page-oriented document text into blocks. All page
// text is concatenated first; if the primary line pattern yields nothing,
// a second, more permissive pass accepts bare-hour AM/PM spans anywhere
// in a line.
func ParsePages(pages []string, classify Classifier) []model.ScheduleBlock {
	if classify == nil {
		classify = KeywordClassifier
	}

	text := strings.Join(pages, "\n")
	blocks := Parse(text, classify)
	if len(blocks) > 0 {
		return blocks
	}

	// Permissive fallback pass.
	blocks = make([]model.ScheduleBlock, 0)
	for _, line := range strings.Split(text, "\n") {
		loc := looseSpanRe.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		label := strings.TrimSpace(line[loc[1]:])
		if label == "" {
			continue
		}
		b, ok := makeBlock(line[loc[2]:loc[3]], line[loc[4]:loc[5]], label, classify)
		if !ok {
			continue
		}
		blocks = append(blocks, b)
	}

	sortByStart(blocks)
	appLog.Debug("schedule page parse completed", "page_count", len(pages), "block_count", len(blocks), "fallback", true)
	return blocks
}

func makeBlock(startTok, endTok, label string, classify Classifier) (model.ScheduleBlock, bool) {
	startMin, err := ParseClock(startTok)
	if err != nil {
		return model.ScheduleBlock{}, false
	}
	endMin, err := ParseClock(endTok)
	if err != nil {
		return model.ScheduleBlock{}, false
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return model.ScheduleBlock{}, false
	}

	return model.ScheduleBlock{
		ID:       uuid.NewString(),
		Start:    FormatClock(startMin),
		End:      FormatClock(endMin),
		Activity: label,
		Category: classify(label),
	}, true
}

func firstLabelCell(cells []string) string {
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" || timeOnlyRe.MatchString(c) {
			continue
		}
		return c
	}
	return ""
}

// sortByStart orders blocks ascending by start time. Zero-padded "HH:MM"
// sorts lexicographically in clock order.
func sortByStart(blocks []model.ScheduleBlock) {
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].Start < blocks[j].Start
	})
}
