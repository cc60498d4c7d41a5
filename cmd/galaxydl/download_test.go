package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galaxydl/galaxydl/pkg/catalog"
	"github.com/galaxydl/galaxydl/pkg/model"
)

func TestSelectGames_EmptySelectorReturnsAll(t *testing.T) {
	games := []catalog.CachedGame{{ID: 1, Slug: "a"}, {ID: 2, Slug: "b"}}
	out, err := selectGames(games, "")
	require.NoError(t, err)
	assert.Equal(t, games, out)
}

func TestSelectGames_MatchesByIDOrSlug(t *testing.T) {
	games := []catalog.CachedGame{{ID: 1, Slug: "witcher"}, {ID: 2, Slug: "stardew"}}

	byID, err := selectGames(games, "2")
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "stardew", byID[0].Slug)

	bySlug, err := selectGames(games, "witcher")
	require.NoError(t, err)
	require.Len(t, bySlug, 1)
	assert.Equal(t, int64(1), bySlug[0].ID)
}

func TestSelectGames_UnknownSelectorErrors(t *testing.T) {
	_, err := selectGames([]catalog.CachedGame{{ID: 1, Slug: "a"}}, "nope")
	assert.Error(t, err)
}

func TestDefaultTemplate_PrefersFlagValue(t *testing.T) {
	assert.Equal(t, "custom", defaultTemplate("custom", "fallback"))
	assert.Equal(t, "fallback", defaultTemplate("", "fallback"))
}

func TestAppendProductUnits_FlattensInstallersExtrasPatchesLangpacksAndChildren(t *testing.T) {
	child := &model.Product{
		Installers: []model.FileUnit{{ID: "dlc-installer"}},
	}
	p := model.Product{
		Installers:    []model.FileUnit{{ID: "installer"}},
		Extras:        []model.FileUnit{{ID: "extra"}},
		Patches:       []model.FileUnit{{ID: "patch"}},
		LanguagePacks: []model.FileUnit{{ID: "langpack"}},
		Children:      []*model.Product{child},
	}

	units := appendProductUnits(nil, p)

	var ids []string
	for _, u := range units {
		ids = append(ids, u.ID)
	}
	assert.ElementsMatch(t, []string{"installer", "extra", "patch", "langpack", "dlc-installer"}, ids)
}
