// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package taxonomy maps free-form category names onto the HR process
// taxonomy and renders the matching block as prompt context.
//
// The taxonomy is three levels deep: top-level categories contain
// mid-level groups, which contain leaf tasks. It is loaded once from an
// embedded YAML document and never mutated.
package taxonomy

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed hr_taxonomy.yaml
var embeddedTree []byte

// Group is a mid-level category and its leaf tasks.
type Group struct {
	Name   string   `yaml:"name" validate:"required"`
	Leaves []string `yaml:"leaves" validate:"dive,required"`
}

// Category is a top-level category.
type Category struct {
	Name   string  `yaml:"name" validate:"required"`
	Groups []Group `yaml:"groups" validate:"required,min=1,dive"`
}

// Tree is the loaded taxonomy with its reverse index.
//
// # Thread Safety
//
// Immutable after LoadTree returns; safe for concurrent reads.
type Tree struct {
	categories []Category

	// groupOwner maps a mid-level name to the index of the first
	// category that registered it.
	groupOwner map[string]int

	// groupOrder lists distinct mid-level names in registration order.
	groupOrder []string
}

// LoadTree decodes and indexes a taxonomy document.
func LoadTree(data []byte) (*Tree, error) {
	var cats []Category
	if err := yaml.Unmarshal(data, &cats); err != nil {
		return nil, fmt.Errorf("decode taxonomy: %w", err)
	}
	if len(cats) == 0 {
		return nil, fmt.Errorf("decode taxonomy: no categories")
	}
	v := validator.New()
	for i := range cats {
		if err := v.Struct(cats[i]); err != nil {
			return nil, fmt.Errorf("validate taxonomy category %d: %w", i, err)
		}
	}

	t := &Tree{
		categories: cats,
		groupOwner: make(map[string]int),
	}
	for ci, c := range cats {
		for _, g := range c.Groups {
			if _, seen := t.groupOwner[g.Name]; seen {
				continue
			}
			t.groupOwner[g.Name] = ci
			t.groupOrder = append(t.groupOrder, g.Name)
		}
	}
	return t, nil
}

var (
	defaultTree     *Tree
	defaultTreeErr  error
	defaultTreeOnce sync.Once
)

// DefaultTree returns the embedded HR taxonomy, loaded once.
func DefaultTree() *Tree {
	defaultTreeOnce.Do(func() {
		defaultTree, defaultTreeErr = LoadTree(embeddedTree)
	})
	if defaultTreeErr != nil {
		panic(fmt.Sprintf("embedded taxonomy: %v", defaultTreeErr))
	}
	return defaultTree
}

// Categories returns the top-level categories in document order.
func (t *Tree) Categories() []Category {
	return t.categories
}

// Category returns a top-level category by exact name.
func (t *Tree) Category(name string) (Category, bool) {
	for _, c := range t.categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// Owner returns the category that first registered a mid-level name.
func (t *Tree) Owner(group string) (string, bool) {
	ci, ok := t.groupOwner[group]
	if !ok {
		return "", false
	}
	return t.categories[ci].Name, true
}
