package internal

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ncruces/go-strftime"
)

// caseTransform selects upper/lower casing of one rendered field.
type caseTransform int

const (
	caseNone caseTransform = iota
	caseUpper
	caseLower
)

// fieldExpr is one resolvable field occurrence inside an alternative.
type fieldExpr struct {
	name      string // registered field name, or "date", "custom", "folders"
	mask      string // strftime mask, slice expression, or literal text
	transform caseTransform
}

// templateToken is a run of literal text followed by an optional field.
type templateToken struct {
	literal string
	field   *fieldExpr
}

type templateAlternative struct {
	tokens []templateToken
}

type templateSegment struct {
	alternatives []templateAlternative
}

// PathTemplate is a compiled path format: one segment per directory level
// plus a final filename segment, each segment an ordered fallback list.
type PathTemplate struct {
	segments []templateSegment
}

// FieldResolver renders one field occurrence against a record.
type FieldResolver func(rec *MetadataRecord, expr fieldExpr) (string, error)

var whitespaceRun = regexp.MustCompile(`[ \t\n\r\f\v]+`)

// PathTemplateEngine compiles path format strings and renders them against
// metadata records. Compiled templates are cached on the instance.
type PathTemplateEngine struct {
	dates         *DateResolver
	locations     *LocationCache
	whitespaceSub string

	resolvers map[string]FieldResolver
	compiled  map[string]*PathTemplate
}

func NewPathTemplateEngine(dates *DateResolver, locations *LocationCache, whitespaceSub string) *PathTemplateEngine {
	e := &PathTemplateEngine{
		dates:         dates,
		locations:     locations,
		whitespaceSub: whitespaceSub,
		resolvers:     make(map[string]FieldResolver),
		compiled:      make(map[string]*PathTemplate),
	}

	e.RegisterField("basename", func(rec *MetadataRecord, _ fieldExpr) (string, error) {
		return rec.BaseName, nil
	})
	e.RegisterField("name", func(rec *MetadataRecord, _ fieldExpr) (string, error) {
		return StripDates(rec.BaseName), nil
	})
	e.RegisterField("ext", func(rec *MetadataRecord, _ fieldExpr) (string, error) {
		return rec.Extension, nil
	})
	e.RegisterField("date", e.resolveDate)
	e.RegisterField("custom", func(_ *MetadataRecord, expr fieldExpr) (string, error) {
		return expr.mask, nil
	})
	e.RegisterField("folder", func(rec *MetadataRecord, _ fieldExpr) (string, error) {
		if rec.Subdirs == "" {
			return "", nil
		}
		return filepath.Base(rec.Subdirs), nil
	})
	e.RegisterField("folders", e.resolveFolders)
	for _, name := range []string{"location", "city", "state", "country"} {
		e.RegisterField(name, e.resolvePlace)
	}
	e.RegisterField("album", func(rec *MetadataRecord, _ fieldExpr) (string, error) {
		return deref(rec.Album), nil
	})
	e.RegisterField("title", func(rec *MetadataRecord, _ fieldExpr) (string, error) {
		return deref(rec.Title), nil
	})
	e.RegisterField("camera_make", func(rec *MetadataRecord, _ fieldExpr) (string, error) {
		return deref(rec.CameraMake), nil
	})
	e.RegisterField("camera_model", func(rec *MetadataRecord, _ fieldExpr) (string, error) {
		return deref(rec.CameraModel), nil
	})
	e.RegisterField("original_name", func(rec *MetadataRecord, _ fieldExpr) (string, error) {
		return deref(rec.OriginalName), nil
	})

	return e
}

// RegisterField adds or replaces the resolver for a field name.
func (e *PathTemplateEngine) RegisterField(name string, fn FieldResolver) {
	e.resolvers[name] = fn
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (e *PathTemplateEngine) resolveDate(rec *MetadataRecord, expr fieldExpr) (string, error) {
	date := e.dates.Resolve(rec)
	if date == nil {
		return "", nil
	}
	adjusted := e.dates.AdjustForDayBegins(*date)
	mask := expr.mask
	if mask == "" {
		mask = "%Y-%m-%d"
	}
	return strftime.Format(mask, adjusted), nil
}

func (e *PathTemplateEngine) resolvePlace(rec *MetadataRecord, expr fieldExpr) (string, error) {
	place := e.locations.Resolve(rec.Latitude, rec.Longitude)
	return place.Field(expr.name), nil
}

func (e *PathTemplateEngine) resolveFolders(rec *MetadataRecord, expr fieldExpr) (string, error) {
	var parts []string
	for _, p := range strings.Split(filepath.ToSlash(rec.Subdirs), "/") {
		if p != "" && p != "." {
			parts = append(parts, p)
		}
	}

	selected, err := applySlice(parts, expr.mask)
	if err != nil {
		return "", err
	}
	return filepath.Join(selected...), nil
}

// applySlice interprets an optional "[start:end]" or "[index]" expression
// against the folder parts. Out-of-range bounds clamp instead of failing.
func applySlice(parts []string, expr string) ([]string, error) {
	if expr == "" {
		return parts, nil
	}
	if !strings.HasPrefix(expr, "[") || !strings.HasSuffix(expr, "]") {
		return nil, ConfigError("invalid folders slice %q", expr)
	}

	inner := expr[1 : len(expr)-1]
	clamp := func(i int) int {
		if i < 0 {
			i += len(parts)
		}
		if i < 0 {
			i = 0
		}
		if i > len(parts) {
			i = len(parts)
		}
		return i
	}

	if !strings.Contains(inner, ":") {
		idx, err := strconv.Atoi(inner)
		if err != nil {
			return nil, ConfigError("invalid folders index %q", expr)
		}
		idx = clamp(idx)
		if idx >= len(parts) {
			return nil, nil
		}
		return parts[idx : idx+1], nil
	}

	bounds := strings.SplitN(inner, ":", 2)
	start, end := 0, len(parts)
	var err error
	if bounds[0] != "" {
		if start, err = strconv.Atoi(bounds[0]); err != nil {
			return nil, ConfigError("invalid folders slice %q", expr)
		}
	}
	if bounds[1] != "" {
		if end, err = strconv.Atoi(bounds[1]); err != nil {
			return nil, ConfigError("invalid folders slice %q", expr)
		}
	}
	start, end = clamp(start), clamp(end)
	if start > end {
		return nil, nil
	}
	return parts[start:end], nil
}

// Compile parses a path format string into a PathTemplate. Results are
// cached per format string for the engine's lifetime.
func (e *PathTemplateEngine) Compile(format string) (*PathTemplate, error) {
	if t, ok := e.compiled[format]; ok {
		return t, nil
	}

	tpl := &PathTemplate{}
	for _, rawSegment := range strings.Split(format, "/") {
		var segment templateSegment
		for _, rawAlt := range strings.Split(rawSegment, "|") {
			alt, err := compileAlternative(rawAlt)
			if err != nil {
				return nil, err
			}
			segment.alternatives = append(segment.alternatives, alt)
		}
		tpl.segments = append(tpl.segments, segment)
	}
	if len(tpl.segments) == 0 {
		return nil, ConfigError("empty path format")
	}

	e.compiled[format] = tpl
	return tpl, nil
}

var strftimeDirective = regexp.MustCompile(`%[a-zA-Z]`)

func compileAlternative(raw string) (templateAlternative, error) {
	var alt templateAlternative
	var literal strings.Builder

	for i := 0; i < len(raw); {
		ch := raw[i]
		switch ch {
		case '}':
			return alt, ConfigError("unbalanced braces in path format part %q", raw)
		case '{':
			end := strings.IndexByte(raw[i:], '}')
			if end < 0 {
				return alt, ConfigError("unbalanced braces in path format part %q", raw)
			}
			inner := raw[i+1 : i+end]

			expr, err := classifyField(inner)
			if err != nil {
				return alt, err
			}

			lit := literal.String()
			literal.Reset()
			// A %u/%l prefix attaches to this field occurrence.
			if strings.HasSuffix(lit, "%u") {
				expr.transform = caseUpper
				lit = lit[:len(lit)-2]
			} else if strings.HasSuffix(lit, "%l") {
				expr.transform = caseLower
				lit = lit[:len(lit)-2]
			}

			alt.tokens = append(alt.tokens, templateToken{literal: lit, field: &expr})
			i += end + 1
		default:
			literal.WriteByte(ch)
			i++
		}
	}

	if literal.Len() > 0 {
		alt.tokens = append(alt.tokens, templateToken{literal: literal.String()})
	}
	return alt, nil
}

// classifyField maps brace contents to a field expression.
func classifyField(inner string) (fieldExpr, error) {
	switch {
	case len(inner) >= 2 && strings.HasPrefix(inner, `"`) && strings.HasSuffix(inner, `"`):
		return fieldExpr{name: "custom", mask: inner[1 : len(inner)-1]}, nil
	case strftimeDirective.MatchString(inner):
		return fieldExpr{name: "date", mask: inner}, nil
	case strings.HasPrefix(inner, "folders"):
		return fieldExpr{name: "folders", mask: inner[len("folders"):]}, nil
	case inner == "date":
		return fieldExpr{name: "date"}, nil
	}

	for _, known := range []string{
		"album", "basename", "camera_make", "camera_model", "city", "country",
		"ext", "folder", "location", "name", "original_name", "state", "title",
	} {
		if inner == known {
			return fieldExpr{name: inner}, nil
		}
	}
	return fieldExpr{}, ConfigError("unrecognized path format field {%s}", inner)
}

// Render resolves a compiled template against a record into a relative path.
func (e *PathTemplateEngine) Render(tpl *PathTemplate, rec *MetadataRecord) (string, error) {
	var parts []string

	for i, segment := range tpl.segments {
		terminal := i == len(tpl.segments)-1

		value, err := e.renderSegment(segment, rec)
		if err != nil {
			return "", err
		}

		if value == "" {
			if terminal {
				// The filename level always gets a record-specific fallback.
				value = rec.BaseName
			} else {
				// Empty directory levels vanish from the path.
				continue
			}
		}

		// Compilation consumed every brace pair as a field expression and
		// rejected stray braces, so any brace surviving here came from a
		// record value and is just data.
		parts = append(parts, value)
	}

	path := filepath.Join(parts...)
	if e.whitespaceSub != " " && e.whitespaceSub != "" {
		path = whitespaceRun.ReplaceAllString(path, e.whitespaceSub)
	}
	return path, nil
}

// renderSegment evaluates alternatives left to right and keeps the first
// non-empty rendering.
func (e *PathTemplateEngine) renderSegment(segment templateSegment, rec *MetadataRecord) (string, error) {
	for _, alt := range segment.alternatives {
		var out strings.Builder

		for _, token := range alt.tokens {
			if token.field == nil {
				out.WriteString(token.literal)
				continue
			}

			resolver, ok := e.resolvers[token.field.name]
			if !ok {
				return "", ConfigError("no resolver registered for field %q", token.field.name)
			}
			value, err := resolver(rec, *token.field)
			if err != nil {
				return "", err
			}

			literal := token.literal
			if value == "" && literal != "" {
				// Drop the single separator that introduced this empty field.
				if last := literal[len(literal)-1]; last == '-' || last == '_' || last == ' ' || last == '.' {
					literal = literal[:len(literal)-1]
				}
			}
			out.WriteString(literal)

			switch token.field.transform {
			case caseUpper:
				value = strings.ToUpper(value)
			case caseLower:
				value = strings.ToLower(value)
			}
			out.WriteString(value)
		}

		if value := strings.TrimSpace(out.String()); value != "" {
			return value, nil
		}
		// Else we continue with the next fallback.
	}
	return "", nil
}

// RenderPath is the one-call form: compile (cached) and render.
func (e *PathTemplateEngine) RenderPath(format string, rec *MetadataRecord) (string, error) {
	tpl, err := e.Compile(format)
	if err != nil {
		return "", err
	}
	path, err := e.Render(tpl, rec)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("path format %q rendered empty for %s", format, rec.BaseName)
	}
	return path, nil
}
