// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package registry

import (
	"github.com/bitmark-inc/logger"

	"github.com/rubelhassan/kerireg/cesr"
	"github.com/rubelhassan/kerireg/fault"
	"github.com/rubelhassan/kerireg/storage"
)

// CloneCursor - lazy first seen replay of one prefix as wire messages
//
// each step reassembles one canonical event: body, then a counted
// witness signature group when signatures exist, then a one element
// source seal group when an anchor exists, all behind a header
// counting the attachment length in quadlets.  The cursor runs over a
// point in time snapshot so a slow consumer never observes later
// writes; Release frees the snapshot
type CloneCursor struct {
	view    *storage.Store
	events  *EventStore
	sigs    *SigIndex
	anchors *AnchorIndex
	items   *OrdinalCursor
	prefix  []byte
	log     *logger.L
	message []byte
	fn      uint64
	err     error
	done    bool
}

// Clone - start a replay of one prefix from first seen number start
//
// the caller must Release the cursor when done, even after an error
func (r *Registry) Clone(prefix []byte, start uint64) (*CloneCursor, error) {
	view, err := r.store.View()
	if nil != err {
		return nil, err
	}

	frozen, err := New(view)
	if nil != err {
		view.Close()
		return nil, err
	}

	bound := make([]byte, len(prefix))
	copy(bound, prefix)

	return &CloneCursor{
		view:    view,
		events:  frozen.Events,
		sigs:    frozen.WitnessSigs,
		anchors: frozen.Anchors,
		items:   frozen.Log.Items(bound, start),
		prefix:  bound,
		log:     r.log,
	}, nil
}

// Next - assemble the next wire message
//
// returns false when the log is exhausted or on error
func (c *CloneCursor) Next() bool {
	if c.done {
		return false
	}

	if !c.items.Next() {
		c.err = c.items.Error()
		c.done = true
		return false
	}

	message, err := c.assemble(c.items.Digest())
	if nil != err {
		c.err = err
		c.done = true
		return false
	}

	c.fn = c.items.Ordinal()
	c.message = message
	return true
}

// Message - the wire message at the current position
func (c *CloneCursor) Message() []byte {
	return c.message
}

// Fn - the first seen number at the current position
func (c *CloneCursor) Fn() uint64 {
	return c.fn
}

// Error - the first failure encountered while stepping
func (c *CloneCursor) Error() error {
	return c.err
}

// Release - free the snapshot backing this cursor
func (c *CloneCursor) Release() {
	if c.done && nil == c.view {
		return
	}
	c.done = true
	if nil != c.view {
		c.view.Close()
		c.view = nil
	}
}

// build body plus framed attachments for one canonical digest
func (c *CloneCursor) assemble(digest []byte) ([]byte, error) {

	body, err := c.events.Get(c.prefix, digest)
	if nil != err {
		return nil, err
	}
	if nil == body {
		c.log.Errorf("replay: missing event body: prefix: %q  digest: %q", c.prefix, digest)
		return nil, fault.MissingEventRecord
	}

	attachments := []byte{}

	sigs, err := c.sigs.GetAll(c.prefix, digest)
	if nil != err {
		return nil, err
	}
	if 0 != len(sigs) {
		group, err := cesr.NewCounter(cesr.CodeWitnessIdxSigs, uint64(len(sigs)))
		if nil != err {
			return nil, err
		}
		attachments = append(attachments, group.Qb64b()...)
		for _, sig := range sigs {
			attachments = append(attachments, sig...)
		}
	}

	quadruple, err := c.anchors.Get(c.prefix, digest)
	if nil != err {
		return nil, err
	}
	if nil != quadruple {
		group, err := cesr.NewCounter(cesr.CodeSealSourceCouples, 1)
		if nil != err {
			return nil, err
		}
		attachments = append(attachments, group.Qb64b()...)
		attachments = append(attachments, quadruple...)
	}

	// attachments must align to whole quadlets
	if 0 != len(attachments)%cesr.QuadletSize {
		c.log.Errorf("replay: attachments size: %d not integral quadlets: prefix: %q  digest: %q", len(attachments), c.prefix, digest)
		return nil, fault.InvalidAttachmentSize
	}
	quadlets := uint64(len(attachments) / cesr.QuadletSize)

	code := cesr.CodeAttachmentGroup
	limit, err := cesr.MaxCount(code)
	if nil != err {
		return nil, err
	}
	if quadlets > limit {
		code = cesr.CodeBigAttachmentGroup
	}
	header, err := cesr.NewCounter(code, quadlets)
	if nil != err {
		return nil, err
	}

	message := make([]byte, 0, len(body)+len(header.Qb64b())+len(attachments))
	message = append(message, body...)
	message = append(message, header.Qb64b()...)
	message = append(message, attachments...)
	return message, nil
}
