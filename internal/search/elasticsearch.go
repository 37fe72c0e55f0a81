package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/AnnixInvestments/annix-sub017/config"
	"github.com/AnnixInvestments/annix-sub017/internal/models"
)

const defaultSearchLimit = 20

// SectionDocument is the indexed form of a BOQ section
type SectionDocument struct {
	SectionID     string          `json:"section_id"`
	BoqID         string          `json:"boq_id"`
	BoqNumber     string          `json:"boq_number"`
	BoqTitle      string          `json:"boq_title,omitempty"`
	SectionType   string          `json:"section_type"`
	SectionTitle  string          `json:"section_title"`
	CapabilityKey string          `json:"capability_key,omitempty"`
	ItemCount     int             `json:"item_count"`
	TotalWeightKg decimal.Decimal `json:"total_weight_kg"`
	Items         []string        `json:"items"`
}

// ElasticClient indexes BOQ sections in Elasticsearch
type ElasticClient struct {
	client  *elasticsearch.Client
	config  config.ElasticConfig
	enabled bool
}

// NewElasticClient creates a new Elasticsearch client. A disabled configuration yields a
// client whose operations are no-ops.
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	if !cfg.Enabled {
		return &ElasticClient{config: cfg}, nil
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client:  client,
		config:  cfg,
		enabled: true,
	}, nil
}

func (c *ElasticClient) index() string {
	return config.FormatIndex(c.config, c.config.Index)
}

// NewSectionDocument builds the search document of a section
func NewSectionDocument(boq *models.Boq, section *models.BoqSection) SectionDocument {
	items := section.Items.Data()
	descriptions := make([]string, 0, len(items))
	for _, item := range items {
		descriptions = append(descriptions, item.Description)
	}
	return SectionDocument{
		SectionID:     section.ID.String(),
		BoqID:         boq.ID.String(),
		BoqNumber:     boq.BoqNumber,
		BoqTitle:      boq.Title,
		SectionType:   section.SectionType,
		SectionTitle:  section.SectionTitle,
		CapabilityKey: section.CapabilityKey,
		ItemCount:     section.ItemCount,
		TotalWeightKg: section.TotalWeightKg,
		Items:         descriptions,
	}
}

// IndexSections replaces the indexed sections of a BOQ with the given ones
func (c *ElasticClient) IndexSections(ctx context.Context, boq *models.Boq, sections []models.BoqSection) error {
	if !c.enabled {
		return nil
	}

	if err := c.deleteBoqSections(ctx, boq.ID.String()); err != nil {
		return err
	}

	for i := range sections {
		doc, err := json.Marshal(NewSectionDocument(boq, &sections[i]))
		if err != nil {
			return errors.Wrap(err, "failed to marshal section document")
		}

		req := esapi.IndexRequest{
			Index:      c.index(),
			DocumentID: sections[i].ID.String(),
			Body:       bytes.NewReader(doc),
			Refresh:    "true",
		}
		res, err := req.Do(ctx, c.client)
		if err != nil {
			return errors.Wrap(err, "failed to execute Elasticsearch index request")
		}
		err = responseError(res, "index")
		res.Body.Close()
		if err != nil {
			return err
		}
	}

	log.Debug().
		Str("boq_id", boq.ID.String()).
		Int("sections", len(sections)).
		Msg("BOQ sections indexed")
	return nil
}

func (c *ElasticClient) deleteBoqSections(ctx context.Context, boqID string) error {
	query, err := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"boq_id": boqID},
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal delete query")
	}

	refresh := true
	conflicts := "proceed"
	req := esapi.DeleteByQueryRequest{
		Index:     []string{c.index()},
		Body:      bytes.NewReader(query),
		Refresh:   &refresh,
		Conflicts: conflicts,
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch delete by query request")
	}
	defer res.Body.Close()

	// A missing index just means nothing was indexed yet
	if res.StatusCode == 404 {
		return nil
	}
	return responseError(res, "delete by query")
}

// SearchSections runs a full text search over section titles and item descriptions
func (c *ElasticClient) SearchSections(ctx context.Context, text string, limit int) ([]SectionDocument, error) {
	if !c.enabled {
		return []SectionDocument{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	query, err := json.Marshal(map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  text,
				"fields": []string{"section_title^2", "items", "boq_number", "boq_title"},
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	req := esapi.SearchRequest{
		Index: []string{c.index()},
		Body:  bytes.NewReader(query),
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	if err := responseError(res, "search"); err != nil {
		return nil, err
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source SectionDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	docs := make([]SectionDocument, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return docs, nil
}

func responseError(res *esapi.Response, op string) error {
	if !res.IsError() {
		return nil
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to read Elasticsearch %s error response", op)
	}
	return errors.Errorf("Elasticsearch %s error: %s: %s", op, res.Status(), string(body))
}
