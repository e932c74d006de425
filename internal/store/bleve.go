package store

import (
	"context"
	"fmt"

	"github.com/ChamsBouzaiene/localchat/internal/conversation"
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// BleveCollection is a Collection stored in a bleve index. It is only ever
// dumped in full; no similarity or keyword queries are issued.
type BleveCollection struct {
	index bleve.Index
	path  string
}

var _ Collection = (*BleveCollection)(nil)

// NewBleveCollection opens the index at path, creating it when missing.
// An empty path gives an in-memory index that lives as long as the process.
func NewBleveCollection(path string) (*BleveCollection, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(buildRecordMapping())
		if err != nil {
			return nil, errors.Wrap(err, "bleve store: create in-memory index")
		}
		return &BleveCollection{index: index}, nil
	}

	index, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(path, buildRecordMapping())
		if err != nil {
			return nil, errors.Wrap(err, "bleve store: create index")
		}
		log.Info().Str("path", path).Msg("store: bleve collection created")
	} else if err != nil {
		// Never recreate here: the index is the durable history.
		return nil, errors.Wrap(err, "bleve store: open index")
	}
	return &BleveCollection{index: index, path: path}, nil
}

func buildRecordMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	recordMapping := bleve.NewDocumentMapping()

	for _, name := range []string{FieldRole, FieldModel, FieldSession, FieldSource} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = true
		f.Index = true
		recordMapping.AddFieldMappingsAt(name, f)
	}

	documentField := bleve.NewTextFieldMapping()
	documentField.Analyzer = standard.Name
	documentField.Store = true
	documentField.Index = true
	recordMapping.AddFieldMappingsAt(FieldDocument, documentField)

	for _, name := range []string{FieldTimestamp, FieldSeq} {
		f := bleve.NewNumericFieldMapping()
		f.Store = true
		f.Index = true
		recordMapping.AddFieldMappingsAt(name, f)
	}

	indexMapping.DefaultMapping = recordMapping
	return indexMapping
}

func (b *BleveCollection) Name() string {
	return "bleve"
}

func (b *BleveCollection) Add(ctx context.Context, ids []string, documents []string, metadatas []Metadata) error {
	if len(ids) != len(documents) || len(ids) != len(metadatas) {
		return fmt.Errorf("bleve store: mismatched arrays: %d ids, %d documents, %d metadatas",
			len(ids), len(documents), len(metadatas))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := b.index.NewBatch()
	for i, id := range ids {
		m := metadatas[i]
		doc := map[string]interface{}{
			FieldDocument:  documents[i],
			FieldRole:      string(m.Role),
			FieldTimestamp: float64(m.Timestamp),
			FieldSeq:       float64(m.Seq),
		}
		// Empty strings are not stored by bleve; leave them out.
		if m.Model != "" {
			doc[FieldModel] = m.Model
		}
		if m.Session != "" {
			doc[FieldSession] = m.Session
		}
		if m.Source != "" {
			doc[FieldSource] = m.Source
		}
		if err := batch.Index(id, doc); err != nil {
			return errors.Wrapf(err, "bleve store: index %s", id)
		}
	}
	return b.index.Batch(batch)
}

func (b *BleveCollection) Get(ctx context.Context) (GetResult, error) {
	count, err := b.index.DocCount()
	if err != nil {
		return GetResult{}, err
	}
	if count == 0 {
		return GetResult{}, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
	req.Fields = []string{"*"}
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return GetResult{}, err
	}

	out := GetResult{
		IDs:       make([]string, 0, len(res.Hits)),
		Documents: make([]string, 0, len(res.Hits)),
		Metadatas: make([]Metadata, 0, len(res.Hits)),
	}
	for _, hit := range res.Hits {
		out.IDs = append(out.IDs, hit.ID)
		out.Documents = append(out.Documents, stringField(hit.Fields, FieldDocument))
		out.Metadatas = append(out.Metadatas, Metadata{
			Role:      conversation.Role(stringField(hit.Fields, FieldRole)),
			Model:     stringField(hit.Fields, FieldModel),
			Timestamp: intField(hit.Fields, FieldTimestamp),
			Seq:       intField(hit.Fields, FieldSeq),
			Session:   stringField(hit.Fields, FieldSession),
			Source:    stringField(hit.Fields, FieldSource),
		})
	}
	return out, nil
}

func (b *BleveCollection) Close() error {
	return b.index.Close()
}

func stringField(fields map[string]interface{}, key string) string {
	s, _ := fields[key].(string)
	return s
}

func intField(fields map[string]interface{}, key string) int64 {
	switch v := fields[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
