package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/galaxydl/galaxydl/pkg/model"
)

func TestCollectTargetPaths_WalksGroupsAndChildren(t *testing.T) {
	child := &model.Product{
		Extras: []model.FileUnit{{TargetPath: "/games/dlc/extra.bin"}},
	}
	p := model.Product{
		Installers:    []model.FileUnit{{TargetPath: "/games/base/installer.exe"}},
		Patches:       []model.FileUnit{{TargetPath: "/games/base/patch.bin"}},
		LanguagePacks: []model.FileUnit{{TargetPath: "/games/base/lang.bin"}},
		Children:      []*model.Product{child},
	}

	paths := collectTargetPaths(nil, p)

	assert.ElementsMatch(t, []string{
		"/games/base/installer.exe",
		"/games/base/patch.bin",
		"/games/base/lang.bin",
		"/games/dlc/extra.bin",
	}, paths)
}
