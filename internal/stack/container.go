// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package stack

import (
	"fmt"
)

// Storage of a dataset. Grouped containers hold many keyed epochs under one file-level
// type tag, singular containers hold exactly one implicit epoch.
type Container interface {
	FileType() string
	IsGrouped() bool
	EpochKeys() []string
	ReadEpoch(key string) (*Epoch, error)
	Attributes() Attributes
	WriteEpoch(e *Epoch) error
	WriteAttributes(attrs Attributes) error
	Close() error
}

// An in-memory container, used for staging and tests
type MemContainer struct {
	Type    string
	Grouped bool
	Attrs   Attributes
	Epochs  []*Epoch
	Closed  bool
}

// Creates an empty in-memory container
func NewMemContainer(fileType string, grouped bool) *MemContainer {
	return &MemContainer{Type: fileType, Grouped: grouped, Attrs: Attributes{}}
}

func (m *MemContainer) FileType() string { return m.Type }

func (m *MemContainer) IsGrouped() bool { return m.Grouped }

func (m *MemContainer) EpochKeys() []string {
	keys := make([]string, len(m.Epochs))
	for i, e := range m.Epochs {
		keys[i] = e.Key
	}
	return keys
}

func (m *MemContainer) ReadEpoch(key string) (*Epoch, error) {
	for _, e := range m.Epochs {
		if e.Key == key {
			return e.Clone(), nil
		}
	}
	return nil, fmt.Errorf("epoch %s not found", key)
}

func (m *MemContainer) Attributes() Attributes { return m.Attrs.Clone() }

func (m *MemContainer) WriteEpoch(e *Epoch) error {
	if m.Closed {
		return fmt.Errorf("write to closed container")
	}
	c := e.Clone()
	for i, old := range m.Epochs {
		if old.Key == e.Key || !m.Grouped {
			m.Epochs[i] = c
			return nil
		}
	}
	m.Epochs = append(m.Epochs, c)
	return nil
}

func (m *MemContainer) WriteAttributes(attrs Attributes) error {
	if m.Closed {
		return fmt.Errorf("write to closed container")
	}
	m.Attrs = attrs.Clone()
	return nil
}

func (m *MemContainer) Close() error {
	m.Closed = true
	return nil
}
