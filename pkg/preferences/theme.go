package preferences

import "github.com/agentick/dashboard/pkg/types"

// Scale holds the pixel values for one sizing preference across the five
// breakpoints the dashboard lays out with.
type Scale struct {
	XS string `json:"xs"`
	SM string `json:"sm"`
	MD string `json:"md"`
	LG string `json:"lg"`
	XL string `json:"xl"`
}

// Palette is the color set for one theme.
type Palette struct {
	Background    string `json:"background"`
	CardBg        string `json:"cardBg"`
	Primary       string `json:"primary"`
	Secondary     string `json:"secondary"`
	Success       string `json:"success"`
	Info          string `json:"info"`
	Warning       string `json:"warning"`
	Error         string `json:"error"`
	Text          string `json:"text"`
	TextSecondary string `json:"textSecondary"`
}

// ThemeVariables is what the frontend turns into CSS custom properties.
type ThemeVariables struct {
	Padding  Scale   `json:"padding"`
	FontSize Scale   `json:"fontSize"`
	Colors   Palette `json:"colors"`
}

var paddingScales = map[types.Size]Scale{
	types.SizeSmall:  {XS: "8px", SM: "12px", MD: "16px", LG: "20px", XL: "24px"},
	types.SizeMedium: {XS: "12px", SM: "16px", MD: "24px", LG: "32px", XL: "40px"},
	types.SizeLarge:  {XS: "16px", SM: "24px", MD: "32px", LG: "48px", XL: "56px"},
}

var fontSizeScales = map[types.Size]Scale{
	types.SizeSmall:  {XS: "10px", SM: "12px", MD: "14px", LG: "16px", XL: "18px"},
	types.SizeMedium: {XS: "12px", SM: "14px", MD: "16px", LG: "18px", XL: "20px"},
	types.SizeLarge:  {XS: "14px", SM: "16px", MD: "18px", LG: "20px", XL: "24px"},
}

var palettes = map[types.ColorTheme]Palette{
	types.ThemeDark: {
		Background: "#0f1535", CardBg: "#111c44",
		Primary: "#0075ff", Secondary: "#2cd9ff",
		Success: "#01b574", Info: "#0075ff",
		Warning: "#ffb547", Error: "#fa3252",
		Text: "#ffffff", TextSecondary: "#a0aec0",
	},
	types.ThemeLight: {
		Background: "#f8f9fa", CardBg: "#ffffff",
		Primary: "#0075ff", Secondary: "#2cd9ff",
		Success: "#01b574", Info: "#0075ff",
		Warning: "#ffb547", Error: "#fa3252",
		Text: "#2d3748", TextSecondary: "#718096",
	},
	types.ThemeBlue: {
		Background: "#1a365d", CardBg: "#2a4365",
		Primary: "#63b3ed", Secondary: "#4fd1c5",
		Success: "#48bb78", Info: "#4299e1",
		Warning: "#ecc94b", Error: "#f56565",
		Text: "#ffffff", TextSecondary: "#cbd5e0",
	},
}

// ThemeVariables derives the render variables from the active preferences.
// Unknown or unset values fall back to medium sizing and the dark palette.
func (s *Synchronizer) ThemeVariables() ThemeVariables {
	prefs := s.Preferences()

	padding, ok := paddingScales[prefs.Padding]
	if !ok {
		padding = paddingScales[types.SizeMedium]
	}
	fontSize, ok := fontSizeScales[prefs.FontSize]
	if !ok {
		fontSize = fontSizeScales[types.SizeMedium]
	}
	colors, ok := palettes[prefs.ColorTheme]
	if !ok {
		colors = palettes[types.ThemeDark]
	}

	return ThemeVariables{Padding: padding, FontSize: fontSize, Colors: colors}
}
