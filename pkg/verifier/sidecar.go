// Package verifier implements VerifierIndex (§4.9): the per-file XML
// sidecar used to decide resume/skip on download and to drive
// chunk-level repair.
package verifier

import (
	"encoding/xml"

	"github.com/galaxydl/galaxydl/pkg/model"
)

// xmlChunk is one <chunk id="" from="" to="">md5</chunk> element.
type xmlChunk struct {
	ID   int    `xml:"id,attr"`
	From int64  `xml:"from,attr"`
	To   int64  `xml:"to,attr"`
	MD5  string `xml:",chardata"`
}

// xmlFile is the sidecar's root <file> element.
type xmlFile struct {
	XMLName   xml.Name   `xml:"file"`
	Name      string     `xml:"name,attr"`
	MD5       string     `xml:"md5,attr"`
	ChunksAttr int       `xml:"chunks,attr"`
	TotalSize int64      `xml:"total_size,attr"`
	Chunks    []xmlChunk `xml:"chunk"`
}

// Decode parses one sidecar document into the shared model type.
func Decode(data []byte) (model.FileVerifier, error) {
	var doc xmlFile
	if err := xml.Unmarshal(data, &doc); err != nil {
		return model.FileVerifier{}, err
	}
	v := model.FileVerifier{
		Name:      doc.Name,
		MD5:       doc.MD5,
		TotalSize: doc.TotalSize,
		Chunks:    make([]model.VerifierChunk, 0, len(doc.Chunks)),
	}
	for _, c := range doc.Chunks {
		v.Chunks = append(v.Chunks, model.VerifierChunk{ID: c.ID, From: c.From, To: c.To, MD5: c.MD5})
	}
	return v, nil
}

// Encode produces a sidecar document from v.
func Encode(v model.FileVerifier) ([]byte, error) {
	doc := xmlFile{
		Name:       v.Name,
		MD5:        v.MD5,
		ChunksAttr: len(v.Chunks),
		TotalSize:  v.TotalSize,
		Chunks:     make([]xmlChunk, 0, len(v.Chunks)),
	}
	for _, c := range v.Chunks {
		doc.Chunks = append(doc.Chunks, xmlChunk{ID: c.ID, From: c.From, To: c.To, MD5: c.MD5})
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
