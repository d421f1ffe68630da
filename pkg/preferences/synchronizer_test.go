package preferences_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/agentick/dashboard/pkg/cache/clientcache"
	"github.com/agentick/dashboard/pkg/cache/inmemory"
	"github.com/agentick/dashboard/pkg/preferences"
	"github.com/agentick/dashboard/pkg/registry"
	"github.com/agentick/dashboard/pkg/repository"
	"github.com/agentick/dashboard/pkg/store"
	"github.com/agentick/dashboard/pkg/store/feed"
	"github.com/agentick/dashboard/pkg/store/memory"
	"github.com/agentick/dashboard/pkg/types"
)

// flakyGateway lets a spec force update failures.
type flakyGateway struct {
	store.Gateway
	failUpdates bool
}

func (f *flakyGateway) UpdateDoc(ctx context.Context, id string, patch store.DocPatch) (*types.Client, error) {
	if f.failUpdates {
		return nil, errors.New("store unavailable")
	}
	return f.Gateway.UpdateDoc(ctx, id, patch)
}

var _ = Describe("Synchronizer", func() {
	var (
		ctx  context.Context
		gw   *flakyGateway
		reg  *registry.ClientRegistry
		sync *preferences.Synchronizer
	)

	newRegistry := func() *registry.ClientRegistry {
		backing, err := inmemory.NewCache(&inmemory.Config{})
		Expect(err).ToNot(HaveOccurred())
		gw = &flakyGateway{Gateway: memory.New(feed.NewLocalFeed())}
		return registry.New(repository.New(gw, clientcache.New(backing)))
	}

	BeforeEach(func() {
		ctx = context.Background()
		reg = newRegistry()
	})

	AfterEach(func() {
		if sync != nil {
			sync.Close()
			sync = nil
		}
	})

	Context("with no client selected", func() {
		BeforeEach(func() {
			sync = preferences.New(reg)
		})

		It("serves the default preferences", func() {
			Expect(sync.Preferences()).To(Equal(types.DefaultPreferences()))
			Expect(sync.SelectedClientID()).To(BeEmpty())
		})

		It("merges edits locally without persisting", func() {
			theme := types.ThemeLight
			Expect(sync.UpdatePreferences(ctx, types.PreferencePatch{ColorTheme: &theme})).To(Succeed())
			Expect(sync.Preferences().ColorTheme).To(Equal(types.ThemeLight))
		})

		It("rejects invalid patches", func() {
			bad := types.ColorTheme("neon")
			err := sync.UpdatePreferences(ctx, types.PreferencePatch{ColorTheme: &bad})
			Expect(errors.Is(err, types.ErrValidation)).To(BeTrue())
		})
	})

	Context("with a selected client", func() {
		var client *types.Client

		BeforeEach(func() {
			var err error
			client, err = reg.AddClient(ctx, "Acme")
			Expect(err).ToNot(HaveOccurred())

			prefs := types.UIPreferences{
				Layout:     types.LayoutCompact,
				ColorTheme: types.ThemeBlue,
				Padding:    types.SizeLarge,
				FontSize:   types.SizeSmall,
			}
			Expect(reg.UpdateClientPreferences(ctx, client.ID, prefs)).To(Succeed())

			sync = preferences.New(reg)
		})

		It("mirrors the selected client's preferences", func() {
			Expect(sync.SelectedClientID()).To(Equal(client.ID))
			Expect(sync.Preferences()).To(Equal(types.UIPreferences{
				Layout:     types.LayoutCompact,
				ColorTheme: types.ThemeBlue,
				Padding:    types.SizeLarge,
				FontSize:   types.SizeSmall,
			}))
		})

		It("shallow-merges a patch, preserving untouched fields", func() {
			padding := types.SizeMedium
			Expect(sync.UpdatePreferences(ctx, types.PreferencePatch{Padding: &padding})).To(Succeed())

			got := sync.Preferences()
			Expect(got.Padding).To(Equal(types.SizeMedium))
			Expect(got.Layout).To(Equal(types.LayoutCompact))
			Expect(got.ColorTheme).To(Equal(types.ThemeBlue))
			Expect(got.FontSize).To(Equal(types.SizeSmall))
		})

		It("persists the full merged set to the selected client", func() {
			layout := types.LayoutExpanded
			Expect(sync.UpdatePreferences(ctx, types.PreferencePatch{Layout: &layout})).To(Succeed())

			stored, err := gw.GetDoc(ctx, client.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(stored.UIPreferences).ToNot(BeNil())
			Expect(stored.UIPreferences.Layout).To(Equal(types.LayoutExpanded))
			Expect(stored.UIPreferences.ColorTheme).To(Equal(types.ThemeBlue), "untouched fields persist too")
		})

		It("falls back to defaults when the selection is removed", func() {
			Expect(reg.RemoveClient(ctx, client.ID)).To(Succeed())
			Expect(sync.SelectedClientID()).To(BeEmpty())
			Expect(sync.Preferences()).To(Equal(types.DefaultPreferences()))
		})

		It("follows a selection switch", func() {
			other, err := reg.AddClient(ctx, "Globex")
			Expect(err).ToNot(HaveOccurred())

			Expect(reg.SelectClient(other.ID)).To(Succeed())
			Expect(sync.SelectedClientID()).To(Equal(other.ID))
			Expect(sync.Preferences()).To(Equal(types.DefaultPreferences()))
		})
	})

	Context("when persistence fails", func() {
		var client *types.Client

		addSelected := func() {
			var err error
			client, err = reg.AddClient(ctx, "Acme")
			Expect(err).ToNot(HaveOccurred())
		}

		It("keeps the local merge under the optimistic policy", func() {
			addSelected()
			sync = preferences.New(reg)

			gw.failUpdates = true
			theme := types.ThemeLight
			err := sync.UpdatePreferences(ctx, types.PreferencePatch{ColorTheme: &theme})
			Expect(err).To(HaveOccurred())

			Expect(sync.Preferences().ColorTheme).To(Equal(types.ThemeLight),
				"local merge survives the failed persist")

			stored, err := gw.Gateway.GetDoc(ctx, client.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(stored.UIPreferences.ColorTheme).To(Equal(types.ThemeDark),
				"store keeps the old value, local and remote diverge")
		})

		It("rolls back under the pessimistic policy", func() {
			addSelected()
			sync = preferences.New(reg, preferences.WithCommitPolicy(preferences.CommitPessimistic))

			gw.failUpdates = true
			theme := types.ThemeLight
			err := sync.UpdatePreferences(ctx, types.PreferencePatch{ColorTheme: &theme})
			Expect(err).To(HaveOccurred())

			Expect(sync.Preferences().ColorTheme).To(Equal(types.ThemeDark),
				"failed persist restores the previous preferences")
		})
	})

	Context("edit mode", func() {
		BeforeEach(func() {
			sync = preferences.New(reg)
		})

		It("toggles", func() {
			Expect(sync.EditMode()).To(BeFalse())
			Expect(sync.ToggleEditMode()).To(BeTrue())
			Expect(sync.ToggleEditMode()).To(BeFalse())
		})
	})
})

var _ = Describe("ThemeVariables", func() {
	var (
		reg  *registry.ClientRegistry
		sync *preferences.Synchronizer
	)

	BeforeEach(func() {
		backing, err := inmemory.NewCache(&inmemory.Config{})
		Expect(err).ToNot(HaveOccurred())
		reg = registry.New(repository.New(memory.New(feed.NewLocalFeed()), clientcache.New(backing)))
		sync = preferences.New(reg)
	})

	AfterEach(func() {
		sync.Close()
	})

	It("derives the dark palette and medium scales from the defaults", func() {
		vars := sync.ThemeVariables()
		Expect(vars.Colors.Background).To(Equal("#0f1535"))
		Expect(vars.Padding.MD).To(Equal("24px"))
		Expect(vars.FontSize.MD).To(Equal("16px"))
	})

	It("switches palette with the color theme", func() {
		ctx := context.Background()
		theme := types.ThemeLight
		Expect(sync.UpdatePreferences(ctx, types.PreferencePatch{ColorTheme: &theme})).To(Succeed())

		vars := sync.ThemeVariables()
		Expect(vars.Colors.Background).To(Equal("#f8f9fa"))
		Expect(vars.Colors.Text).To(Equal("#2d3748"))
	})

	It("scales padding and font size together with the size preferences", func() {
		ctx := context.Background()
		padding := types.SizeLarge
		fontSize := types.SizeSmall
		Expect(sync.UpdatePreferences(ctx, types.PreferencePatch{
			Padding:  &padding,
			FontSize: &fontSize,
		})).To(Succeed())

		vars := sync.ThemeVariables()
		Expect(vars.Padding.XL).To(Equal("56px"))
		Expect(vars.FontSize.XS).To(Equal("10px"))
	})
})
