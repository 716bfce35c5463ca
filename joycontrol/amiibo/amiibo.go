// Package amiibo holds the NFC tag payloads served by the emulated MCU.
package amiibo

import (
	"errors"
	"fmt"
	"sync"

	"dio.wtf/nxcontrol/joycontrol/blob"
	"dio.wtf/nxcontrol/joycontrol/log"
	"golang.org/x/exp/slices"
)

const (
	Size     = 540
	LongSize = 572
)

type TagType uint8

const (
	Amiibo TagType = iota
)

var ErrWriteOutOfRange = errors.New("tag write out of range")

// Tag is an NTAG215 memory dump.
type Tag struct {
	data    []byte
	tagType TagType
	source  string
}

// New copies data into a tag. source is where Save writes to, it may be empty.
func New(data []byte, tagType TagType, source string) *Tag {
	if tagType == Amiibo {
		if len(data) == LongSize {
			log.Info("Long amiibo loaded, manufacturer signature is ignored")
		} else if len(data) != Size {
			log.WarnF("Illegal amiibo tag size %d", len(data))
		}
	}
	return &Tag{
		data:    slices.Clone(data),
		tagType: tagType,
		source:  source,
	}
}

// Load reads an amiibo dump from the store.
func Load(store blob.Store, path string) (*Tag, error) {
	data, err := store.Load(path)
	if nil != err {
		return nil, fmt.Errorf("load amiibo %s: %w", path, err)
	}
	return New(data, Amiibo, path), nil
}

var removed = sync.OnceValue(func() *Tag {
	return &Tag{data: make([]byte, Size), tagType: Amiibo}
})

// Removed is the all zero tag reported while a removal is being forced.
// It is shared and must not be written to.
func Removed() *Tag {
	return removed()
}

// Info is a copy of the tag fields shown to users. It can be read while the
// tag itself keeps changing.
type Info struct {
	UID    []byte
	Source string
}

func (t *Tag) Info() Info {
	return Info{UID: t.UID(), Source: t.source}
}

func (t *Tag) Type() TagType {
	return t.tagType
}

func (t *Tag) Source() string {
	return t.source
}

func (t *Tag) Data() []byte {
	return t.data
}

// UID is the 7 byte NTAG serial: bytes 0-2 followed by bytes 4-7. Byte 3
// is the first check byte and is skipped. Some references call this a 6
// byte identifier, but those two ranges always add up to 7 bytes.
func (t *Tag) UID() []byte {
	data := t.data
	if len(data) < 8 {
		data = append(slices.Clone(data), make([]byte, 8-len(data))...)
	}
	uid := make([]byte, 0, 7)
	uid = append(uid, data[0:3]...)
	return append(uid, data[4:8]...)
}

func (t *Tag) Write(idx int, data []byte) error {
	if idx < 0 || idx+len(data) > len(t.data) {
		log.ErrorF("Tag write out of range: idx %d, %d bytes, tag size %d", idx, len(data), len(t.data))
		return ErrWriteOutOfRange
	}
	copy(t.data[idx:], data)
	return nil
}

// Save writes the tag back to where it was loaded from.
func (t *Tag) Save(store blob.Store) error {
	if t.source == "" {
		log.Warn("No save path provided, ignoring save call")
		return nil
	}
	if err := store.Save(t.source, t.data); nil != err {
		return err
	}
	log.InfoF("Saved altered amiibo as %s", t.source)
	return nil
}
