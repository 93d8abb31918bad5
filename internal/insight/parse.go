package insight

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/abelbrown/pulse/internal/model"
)

// ParseStage names the step at which a model response was rejected.
type ParseStage string

const (
	StageExtract  ParseStage = "extract"
	StageDecode   ParseStage = "decode"
	StageValidate ParseStage = "validate"
)

// ParseError reports a model response that did not match the expected shape.
type ParseError struct {
	Stage ParseStage
	Msg   string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Stage, e.Msg, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Stage, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Response is the decoded and validated model output. Article references
// are still raw ids.
type Response struct {
	RecommendedActions []model.RecommendedAction `json:"recommendedActions"`
	Themes             []ResponseTheme           `json:"themes"`
}

type ResponseTheme struct {
	Name     string              `json:"name"`
	Icon     string              `json:"icon"`
	Insights []ResponseInsight   `json:"insights"`
	Actions  []model.ThemeAction `json:"actions"`
}

type ResponseInsight struct {
	Text       string     `json:"text"`
	ArticleIDs articleIDs `json:"articleIds"`
}

// articleIDs accepts numbers and numeric strings; anything else is skipped.
type articleIDs []int

func (ids *articleIDs) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*ids = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(articleIDs, 0, len(raw))
	for _, r := range raw {
		var n json.Number
		if err := json.Unmarshal(r, &n); err == nil {
			if v, err := n.Int64(); err == nil {
				out = append(out, int(v))
			}
			continue
		}
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
				out = append(out, v)
			}
		}
	}
	*ids = out
	return nil
}

var fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

// ExtractJSON returns the JSON object embedded in text: the first fenced
// code block that holds an object, else the first balanced top-level brace
// span.
func ExtractJSON(text string) (string, error) {
	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		body := strings.TrimSpace(m[1])
		if strings.HasPrefix(body, "{") {
			if obj, ok := balancedObject(body); ok {
				return obj, nil
			}
		}
	}
	if obj, ok := balancedObject(text); ok {
		return obj, nil
	}
	return "", &ParseError{Stage: StageExtract, Msg: "no JSON object found"}
}

// balancedObject scans from the first '{' to its matching '}', ignoring
// braces inside string literals.
func balancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// ParseResponse extracts, decodes and validates a model response.
// Failures are always *ParseError.
func ParseResponse(text string) (*Response, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, &ParseError{Stage: StageDecode, Msg: "invalid JSON", Err: err}
	}
	if err := resp.validate(); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *Response) validate() error {
	if len(r.Themes) == 0 {
		return &ParseError{Stage: StageValidate, Msg: "no themes"}
	}
	for i, th := range r.Themes {
		if strings.TrimSpace(th.Name) == "" {
			return &ParseError{Stage: StageValidate, Msg: fmt.Sprintf("theme %d has no name", i)}
		}
		if len(th.Insights) == 0 {
			return &ParseError{Stage: StageValidate, Msg: fmt.Sprintf("theme %q has no insights", th.Name)}
		}
		for j, in := range th.Insights {
			if strings.TrimSpace(in.Text) == "" {
				return &ParseError{Stage: StageValidate, Msg: fmt.Sprintf("theme %q insight %d has no text", th.Name, j)}
			}
		}
	}
	return nil
}

const defaultThemeIcon = "💡"

// Resolve converts the response into domain themes, replacing article ids
// with the matching refs. Unknown and repeated ids are dropped.
func (r *Response) Resolve(refs []model.ArticleRef) ([]model.Theme, []model.RecommendedAction) {
	themes := make([]model.Theme, 0, len(r.Themes))
	for _, rt := range r.Themes {
		th := model.Theme{
			Name:     strings.TrimSpace(rt.Name),
			Icon:     rt.Icon,
			Kind:     model.ThemeGenerated,
			Insights: make([]model.Insight, 0, len(rt.Insights)),
		}
		if th.Icon == "" {
			th.Icon = defaultThemeIcon
		}
		for _, ri := range rt.Insights {
			in := model.Insight{Text: strings.TrimSpace(ri.Text), Articles: []model.ArticleRef{}}
			seen := make(map[int]bool)
			for _, id := range ri.ArticleIDs {
				if id < 0 || id >= len(refs) || seen[id] {
					continue
				}
				seen[id] = true
				in.Articles = append(in.Articles, refs[id])
			}
			th.Insights = append(th.Insights, in)
		}
		for _, a := range rt.Actions {
			if strings.TrimSpace(a.Action) != "" {
				th.Actions = append(th.Actions, a)
			}
		}
		themes = append(themes, th)
	}

	actions := make([]model.RecommendedAction, 0, len(r.RecommendedActions))
	for _, a := range r.RecommendedActions {
		if strings.TrimSpace(a.Action) != "" {
			actions = append(actions, a)
		}
	}
	return themes, actions
}
