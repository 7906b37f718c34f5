package model

import "time"

// Asset is a canonical stored file produced by ingestion. Identity is the
// (ID, Ext) pair; the on-disk name is "{ID}.{Ext}". Assets are immutable
// once written: they are only ever created or deleted, never rewritten.
type Asset struct {
	ID        string    `json:"-"`
	Ext       string    `json:"-"`
	MediaType string    `json:"-"`
	Size      int64     `json:"-"`
	Uploaded  time.Time `json:"-"`
}

// Filename returns the on-disk name of the asset.
func (a Asset) Filename() string {
	return a.ID + "." + a.Ext
}

// TypeStat aggregates the upload ledger for one media type.
type TypeStat struct {
	MediaType string `json:"media_type"`
	Ext       string `json:"extension"`
	Count     int    `json:"count"`
	Bytes     int64  `json:"bytes"`
}
