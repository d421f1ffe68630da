package types

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/goccy/go-json"
)

// Layout controls how dashboard cards are arranged.
type Layout string

// ColorTheme selects the dashboard palette.
type ColorTheme string

// Size is shared by the padding and font-size preferences.
type Size string

const (
	LayoutDefault  Layout = "default"
	LayoutCompact  Layout = "compact"
	LayoutExpanded Layout = "expanded"

	ThemeDark  ColorTheme = "dark"
	ThemeLight ColorTheme = "light"
	ThemeBlue  ColorTheme = "blue"

	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// Metric names every client record carries.
const (
	MetricSuccessRate   = "successRate"
	MetricRevenue       = "revenue"
	MetricCallsBooked   = "callsBooked"
	MetricHoursSaved    = "hoursSaved"
	MetricRetentionRate = "retentionRate"
)

// RequiredMetrics is the full set of metric keys a metrics payload must contain.
var RequiredMetrics = []string{
	MetricSuccessRate,
	MetricRevenue,
	MetricCallsBooked,
	MetricHoursSaved,
	MetricRetentionRate,
}

// HistoryPoints is the length of every metric history series (one year, monthly).
const HistoryPoints = 12

// MetricValue is a number-or-string scalar. Most metrics store plain numbers,
// but retentionRate historically stores its current value as a percent string
// ("78%"). Both forms round-trip through JSON and DynamoDB unchanged.
type MetricValue struct {
	Number float64
	Text   string // non-empty when the stored value is a string
}

// Num builds a numeric MetricValue.
func Num(v float64) MetricValue { return MetricValue{Number: v} }

// Str builds a string MetricValue.
func Str(s string) MetricValue { return MetricValue{Text: s} }

func (v MetricValue) MarshalJSON() ([]byte, error) {
	if v.Text != "" {
		return json.Marshal(v.Text)
	}
	return json.Marshal(v.Number)
}

func (v *MetricValue) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &v.Text)
	}
	v.Text = ""
	return json.Unmarshal(data, &v.Number)
}

func (v MetricValue) MarshalDynamoDBAttributeValue() (ddbtypes.AttributeValue, error) {
	if v.Text != "" {
		return attributevalue.Marshal(v.Text)
	}
	return attributevalue.Marshal(v.Number)
}

func (v *MetricValue) UnmarshalDynamoDBAttributeValue(av ddbtypes.AttributeValue) error {
	switch t := av.(type) {
	case *ddbtypes.AttributeValueMemberS:
		v.Text = t.Value
		return nil
	case *ddbtypes.AttributeValueMemberN:
		v.Text = ""
		return attributevalue.Unmarshal(av, &v.Number)
	default:
		return fmt.Errorf("metric value must be a number or string, got %T", av)
	}
}

// MetricBlock is one KPI series: the current value, an optional previous
// value with its computed change, an optional display trend ("+15%") and a
// fixed-length history.
type MetricBlock struct {
	Current  MetricValue `json:"current" dynamodbav:"current"`
	Previous *float64    `json:"previous,omitempty" dynamodbav:"previous,omitempty"`
	Change   *float64    `json:"change,omitempty" dynamodbav:"change,omitempty"`
	Trend    string      `json:"trend,omitempty" dynamodbav:"trend,omitempty"`
	History  []float64   `json:"history" dynamodbav:"history"`
}

// Metrics maps metric name to its block.
type Metrics map[string]*MetricBlock

// UIPreferences is the per-client display customization. Empty fields mean
// "not set"; DefaultPreferences fills the gaps.
type UIPreferences struct {
	Layout     Layout     `json:"layout,omitempty" dynamodbav:"layout,omitempty"`
	ColorTheme ColorTheme `json:"colorTheme,omitempty" dynamodbav:"colorTheme,omitempty"`
	Padding    Size       `json:"padding,omitempty" dynamodbav:"padding,omitempty"`
	FontSize   Size       `json:"fontSize,omitempty" dynamodbav:"fontSize,omitempty"`
}

// DefaultPreferences is the preference set applied to new clients and shown
// when no client is selected.
func DefaultPreferences() UIPreferences {
	return UIPreferences{
		Layout:     LayoutDefault,
		ColorTheme: ThemeDark,
		Padding:    SizeMedium,
		FontSize:   SizeMedium,
	}
}

// PreferencePatch is a partial preference update. Nil fields are retained
// from the current preferences on merge.
type PreferencePatch struct {
	Layout     *Layout     `json:"layout,omitempty"`
	ColorTheme *ColorTheme `json:"colorTheme,omitempty"`
	Padding    *Size       `json:"padding,omitempty"`
	FontSize   *Size       `json:"fontSize,omitempty"`
}

// Merge applies a patch on top of p, field by field. Unset patch fields keep
// their current value.
func (p UIPreferences) Merge(patch PreferencePatch) UIPreferences {
	out := p
	if patch.Layout != nil {
		out.Layout = *patch.Layout
	}
	if patch.ColorTheme != nil {
		out.ColorTheme = *patch.ColorTheme
	}
	if patch.Padding != nil {
		out.Padding = *patch.Padding
	}
	if patch.FontSize != nil {
		out.FontSize = *patch.FontSize
	}
	return out
}

// Client is the per-tenant dashboard record.
type Client struct {
	ID            string         `json:"id" dynamodbav:"id"`
	Name          string         `json:"name,omitempty" dynamodbav:"name,omitempty"`
	Metrics       Metrics        `json:"metrics,omitempty" dynamodbav:"metrics,omitempty"`
	UIPreferences *UIPreferences `json:"uiPreferences,omitempty" dynamodbav:"uiPreferences,omitempty"`
	CreatedAt     time.Time      `json:"createdAt,omitempty" dynamodbav:"createdAt,omitempty"`
	UpdatedAt     time.Time      `json:"updatedAt,omitempty" dynamodbav:"updatedAt,omitempty"`
}

// Clone returns a deep copy so registry snapshots cannot be mutated through
// shared metric blocks or preference pointers.
func (c *Client) Clone() *Client {
	if c == nil {
		return nil
	}
	out := *c
	if c.Metrics != nil {
		out.Metrics = make(Metrics, len(c.Metrics))
		for name, block := range c.Metrics {
			if block == nil {
				out.Metrics[name] = nil
				continue
			}
			b := *block
			if block.Previous != nil {
				prev := *block.Previous
				b.Previous = &prev
			}
			if block.Change != nil {
				ch := *block.Change
				b.Change = &ch
			}
			if block.History != nil {
				b.History = append([]float64(nil), block.History...)
			}
			out.Metrics[name] = &b
		}
	}
	if c.UIPreferences != nil {
		prefs := *c.UIPreferences
		out.UIPreferences = &prefs
	}
	return &out
}

// Preferences returns the client's preferences, or the defaults when unset.
func (c *Client) Preferences() UIPreferences {
	if c == nil || c.UIPreferences == nil {
		return DefaultPreferences()
	}
	return *c.UIPreferences
}
