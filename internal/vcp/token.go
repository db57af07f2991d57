package vcp

import (
	"strconv"
	"strings"
	"time"
)

// CSM-1 is the compact line-oriented token format a context travels in.
// Each line is KEY:REST; emoji shortcodes keep the token human-scannable
// while staying cheap to parse.

// WireSeparator joins token lines for single-line transport.
const WireSeparator = "‖"

// dimensionEmoji maps personal state dimensions to their token shortcodes.
var dimensionEmoji = map[string]string{
	DimCognitiveState:   "🧠",
	DimEmotionalTone:    "💭",
	DimEnergyLevel:      "🔋",
	DimPerceivedUrgency: "⚡",
	DimBodySignals:      "🩺",
}

var lifecycleCodes = map[Lifecycle]string{
	LifecycleSet:      "S",
	LifecycleActive:   "A",
	LifecycleDecaying: "D",
	LifecycleStale:    "T",
	LifecycleExpired:  "X",
}

// flagOrder fixes the encoding order of outward constraint flags.
var flagOrder = []string{
	"time_limited",
	"noise_restricted",
	"budget_limited",
	"energy_variable",
	"schedule_irregular",
}

// EncodeCSM1 renders the context as CSM-1 token lines. Personal state
// intensities are decayed at encode time; private context appears only as
// category markers, never as values.
func EncodeCSM1(ctx *Context, now time.Time) []string {
	lines := make([]string, 0, 10)

	lines = append(lines, "VCP:"+ctx.Version+":"+ctx.ProfileID)

	if ctx.Constitution.ID != "" {
		lines = append(lines, "C:"+ctx.Constitution.ID+"@"+ctx.Constitution.Version)
	}

	persona := PersonaMuse
	adherence := 3
	if c, ok := ConstitutionByID(ctx.Constitution.ID); ok {
		persona = c.Persona
		adherence = c.Adherence
	}
	lines = append(lines, "P:"+string(persona)+":"+strconv.Itoa(adherence))

	lines = append(lines, encodeGoalLine(ctx))

	lines = append(lines, encodeConstraintLine(ctx))

	flags := DerivedConstraints(ctx)
	active := make([]string, 0, len(flagOrder))
	for _, flag := range flagOrder {
		if flags[flag] {
			active = append(active, flag)
		}
	}
	if len(active) == 0 {
		lines = append(lines, "F:none")
	} else {
		lines = append(lines, "F:"+strings.Join(active, "|"))
	}

	lines = append(lines, encodePrivateMarkers(ctx))

	if ctx.SystemContext != "" {
		lines = append(lines, "SC:"+ctx.SystemContext)
	}

	if state := encodeStateLine(ctx, now); state != "" {
		lines = append(lines, state)
	}
	if lc := encodeLifecycleLine(ctx, now); lc != "" {
		lines = append(lines, lc)
	}

	return lines
}

func encodeGoalLine(ctx *Context) string {
	goal := stringField(ctx.PublicProfile, "goal")
	if goal == "" {
		goal = "unset"
	}
	goal = strings.ReplaceAll(goal, "\n", " ")

	experience := stringField(ctx.PublicProfile, "experience")
	if experience == "" {
		experience = "beginner"
	}

	style := stringField(ctx.PortablePreferences, "style")
	if style == "" {
		style = "mixed"
	}

	return "G:" + goal + ":" + experience + ":" + style
}

// encodeConstraintLine renders the X line: emoji shortcodes for set
// constraint flags, then noise, budget and session markers from the
// portable preferences.
func encodeConstraintLine(ctx *Context) string {
	flags := DerivedConstraints(ctx)
	parts := make([]string, 0, 8)
	if flags["noise_restricted"] {
		parts = append(parts, "🔇")
	}
	if flags["time_limited"] {
		parts = append(parts, "⏰lim")
	}
	if flags["energy_variable"] {
		parts = append(parts, "⚡var")
	}

	switch stringField(ctx.PortablePreferences, "noise_mode") {
	case "quiet_preferred":
		parts = append(parts, "🔇quiet")
	case "silent_required":
		parts = append(parts, "🔕silent")
	}
	switch stringField(ctx.PortablePreferences, "budget_range") {
	case "low":
		parts = append(parts, "💰low")
	case "free_only":
		parts = append(parts, "🆓")
	}
	if session := stringField(ctx.PortablePreferences, "session_length"); session != "" {
		parts = append(parts, "⏱️"+strings.Replace(session, "_", "", 1))
	}

	if len(parts) == 0 {
		return "X:none"
	}
	return "X:" + strings.Join(parts, ":")
}

// encodePrivateMarkers renders the S line: one 🔒<category> marker per
// private context category. The category is the first underscore segment
// of the key; note and reasoning entries are never marked.
func encodePrivateMarkers(ctx *Context) string {
	seen := make(map[string]bool)
	markers := make([]string, 0, len(ctx.PrivateContext))
	for _, key := range sortedKeys(ctx.PrivateContext) {
		if strings.HasSuffix(key, "_note") || strings.HasSuffix(key, "_reasoning") {
			continue
		}
		category := key
		if idx := strings.Index(key, "_"); idx > 0 {
			category = key[:idx]
		}
		if seen[category] {
			continue
		}
		seen[category] = true
		markers = append(markers, "🔒"+category)
	}
	if len(markers) == 0 {
		return "S:none"
	}
	return "S:" + strings.Join(markers, "|")
}

func encodeStateLine(ctx *Context, now time.Time) string {
	effective := EffectiveState(ctx.PersonalState, now)
	parts := make([]string, 0, len(DimensionOrder))
	for _, dim := range DimensionOrder {
		e, ok := effective[dim]
		if !ok {
			continue
		}
		part := dimensionEmoji[dim] + e.Value + ":" + strconv.Itoa(e.Effective)
		if e.Extended != "" {
			part += ":" + e.Extended
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return ""
	}
	return "R:" + strings.Join(parts, "|")
}

func encodeLifecycleLine(ctx *Context, now time.Time) string {
	effective := EffectiveState(ctx.PersonalState, now)
	parts := make([]string, 0, len(DimensionOrder))
	for _, dim := range DimensionOrder {
		e, ok := effective[dim]
		if !ok {
			continue
		}
		if e.Pinned {
			parts = append(parts, dimensionEmoji[dim]+"P")
			continue
		}
		code := lifecycleCodes[e.Lifecycle]
		parts = append(parts, dimensionEmoji[dim]+code+":"+strconv.Itoa(e.ElapsedSeconds)+"s")
	}
	if len(parts) == 0 {
		return ""
	}
	return "LC:" + strings.Join(parts, "|")
}

// WireFormat joins token lines into the single-line transport form.
func WireFormat(lines []string) string {
	return strings.Join(lines, WireSeparator)
}

// ParseCSM1 parses token lines (or a wire-format string) into a key→rest
// map. Parsing is best-effort: unknown or malformed lines are skipped, a
// repeated key keeps the last value.
func ParseCSM1(token string) map[string]string {
	normalized := strings.ReplaceAll(token, WireSeparator, "\n")
	out := make(map[string]string)
	for _, line := range strings.Split(normalized, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		out[line[:idx]] = line[idx+1:]
	}
	return out
}

// FormatTokenForDisplay renders token lines inside a box-drawing frame for
// terminal display.
func FormatTokenForDisplay(lines []string) string {
	width := 0
	for _, line := range lines {
		if n := len([]rune(line)); n > width {
			width = n
		}
	}

	var b strings.Builder
	b.WriteString("┌" + strings.Repeat("─", width+2) + "┐\n")
	for _, line := range lines {
		pad := width - len([]rune(line))
		b.WriteString("│ " + line + strings.Repeat(" ", pad) + " │\n")
	}
	b.WriteString("└" + strings.Repeat("─", width+2) + "┘")
	return b.String()
}

// TransmissionSummary tells the user what a token actually carries:
// what is transmitted, what stays withheld, and which withheld categories
// still influence behavior locally.
type TransmissionSummary struct {
	Transmitted []string `json:"transmitted"`
	Withheld    []string `json:"withheld"`
	Influencing []string `json:"influencing"`
}

// SummarizeTransmission inspects a context and reports the privacy shape
// of its token.
func SummarizeTransmission(ctx *Context, now time.Time) TransmissionSummary {
	summary := TransmissionSummary{
		Transmitted: make([]string, 0),
		Withheld:    make([]string, 0),
		Influencing: make([]string, 0),
	}

	for _, field := range alwaysShared {
		if v, ok := ctx.PublicProfile[field]; ok && v != nil {
			summary.Transmitted = append(summary.Transmitted, field)
		}
	}
	flags := DerivedConstraints(ctx)
	for _, flag := range flagOrder {
		if flags[flag] {
			summary.Transmitted = append(summary.Transmitted, "constraint:"+flag)
		}
	}
	for _, dim := range DimensionOrder {
		if _, ok := ctx.PersonalState[dim]; ok {
			summary.Transmitted = append(summary.Transmitted, "personal_state:"+dim)
		}
	}

	categories := make(map[string]bool)
	for _, key := range sortedKeys(ctx.PrivateContext) {
		if strings.HasSuffix(key, "_note") {
			continue
		}
		summary.Withheld = append(summary.Withheld, key)
		if strings.HasSuffix(key, "_reasoning") {
			continue
		}
		category := key
		if idx := strings.Index(key, "_"); idx > 0 {
			category = key[:idx]
		}
		if !categories[category] {
			categories[category] = true
			summary.Influencing = append(summary.Influencing, category)
		}
	}

	return summary
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
