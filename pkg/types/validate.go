package types

// Validate checks a candidate record before a write. Zero-valued fields are
// treated as absent, so partial payloads (a preferences-only update, say)
// only have their present parts checked. This makes validation advisory for
// partial updates: a record whose stored metrics are malformed can still be
// patched through a preferences-only write. Known gap, kept deliberately.
func (c *Client) Validate() error {
	if c.Metrics != nil {
		for _, name := range RequiredMetrics {
			block, ok := c.Metrics[name]
			if !ok || block == nil {
				return Err(ErrValidation, nil, "metric %s is required", name)
			}
		}
	}

	if c.UIPreferences != nil {
		if err := c.UIPreferences.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Validate checks every set preference field against its enumerated values.
// Empty fields pass; defaults cover them later.
func (p UIPreferences) Validate() error {
	if p.Layout != "" {
		switch p.Layout {
		case LayoutDefault, LayoutCompact, LayoutExpanded:
		default:
			return Err(ErrValidation, nil, "invalid layout: %s", p.Layout)
		}
	}
	if p.ColorTheme != "" {
		switch p.ColorTheme {
		case ThemeDark, ThemeLight, ThemeBlue:
		default:
			return Err(ErrValidation, nil, "invalid color theme: %s", p.ColorTheme)
		}
	}
	if p.Padding != "" && !validSize(p.Padding) {
		return Err(ErrValidation, nil, "invalid padding: %s", p.Padding)
	}
	if p.FontSize != "" && !validSize(p.FontSize) {
		return Err(ErrValidation, nil, "invalid font size: %s", p.FontSize)
	}
	return nil
}

// Validate rejects patches whose set fields fall outside the enums.
func (p PreferencePatch) Validate() error {
	merged := UIPreferences{}
	return merged.Merge(p).Validate()
}

func validSize(s Size) bool {
	switch s {
	case SizeSmall, SizeMedium, SizeLarge:
		return true
	}
	return false
}
