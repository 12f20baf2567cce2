package dhis2

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/minios-linux/d2dedup/dedupe"
)

var (
	_ dedupe.ObjectSource = (*Client)(nil)
	_ dedupe.ObjectWriter = (*Client)(nil)
)

// SystemInfo is the subset of /api/system/info used to confirm a login.
type SystemInfo struct {
	Version         string `json:"version"`
	Revision        string `json:"revision"`
	ContextPath     string `json:"contextPath"`
	SystemName      string `json:"systemName"`
	ServerTimeZone  string `json:"serverTimeZoneId"`
	InstanceBaseURL string `json:"instanceBaseUrl"`
}

// Ping fetches system info. It fails on bad credentials.
func (c *Client) Ping(ctx context.Context) (*SystemInfo, error) {
	body, err := c.do(ctx, "GET", "api/system/info", nil, nil)
	if err != nil {
		return nil, err
	}
	var info SystemInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parsing system info: %w", err)
	}
	return &info, nil
}

type schemaList struct {
	Schemas []struct {
		dedupe.ObjectType
		Translatable bool `json:"translatable"`
	} `json:"schemas"`
}

// ListTypes returns every translatable metadata type.
func (c *Client) ListTypes(ctx context.Context) ([]dedupe.ObjectType, error) {
	q := url.Values{}
	q.Set("fields", "name,plural,translatable,relativeApiEndpoint")
	q.Set("filter", "translatable:eq:true")

	body, err := c.do(ctx, "GET", "api/schemas.json", q, nil)
	if err != nil {
		return nil, err
	}

	var list schemaList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("parsing schemas: %w", err)
	}

	var types []dedupe.ObjectType
	for _, s := range list.Schemas {
		// older servers ignore the filter parameter
		if !s.Translatable || s.Plural == "" {
			continue
		}
		types = append(types, s.ObjectType)
	}
	return types, nil
}

// FetchObjects returns every object of t with its id, name and translations.
func (c *Client) FetchObjects(ctx context.Context, t dedupe.ObjectType) ([]dedupe.Object, error) {
	q := url.Values{}
	q.Set("fields", "id,name,translations")
	q.Set("paging", "false")

	body, err := c.do(ctx, "GET", "api/"+t.Plural, q, nil)
	if err != nil {
		return nil, err
	}

	var page map[string]json.RawMessage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", t.Plural, err)
	}
	raw, ok := page[t.Plural]
	if !ok {
		return nil, nil
	}

	var objects []dedupe.Object
	if err := json.Unmarshal(raw, &objects); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", t.Plural, err)
	}
	return objects, nil
}

// FetchFresh returns the owner-level representation of one object. Numbers
// are kept as json.Number so they round-trip unchanged on write-back.
func (c *Client) FetchFresh(ctx context.Context, t dedupe.ObjectType, id string) (*dedupe.FullObject, error) {
	q := url.Values{}
	q.Set("fields", ":owner")

	body, err := c.do(ctx, "GET", objectPath(t, id), q, nil)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("parsing %s/%s: %w", t.Plural, id, err)
	}

	obj := &dedupe.FullObject{ID: id, Fields: fields}
	if raw, ok := fields["translations"]; ok {
		encoded, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("reading translations of %s/%s: %w", t.Plural, id, err)
		}
		if err := json.Unmarshal(encoded, &obj.Translations); err != nil {
			return nil, fmt.Errorf("reading translations of %s/%s: %w", t.Plural, id, err)
		}
		delete(fields, "translations")
	}
	if v, ok := fields["id"].(string); ok && v != "" {
		obj.ID = v
	}
	return obj, nil
}

type importReport struct {
	Status     string `json:"status"`
	HTTPStatus string `json:"httpStatus"`
	Message    string `json:"message"`
}

// WriteBack replaces the object with obj.Fields plus obj.Translations.
func (c *Client) WriteBack(ctx context.Context, t dedupe.ObjectType, id string, obj *dedupe.FullObject) error {
	payload := make(map[string]any, len(obj.Fields)+1)
	for k, v := range obj.Fields {
		payload[k] = v
	}
	translations := obj.Translations
	if translations == nil {
		translations = []dedupe.Translation{}
	}
	payload["translations"] = translations

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", t.Plural, id, err)
	}

	resp, err := c.do(ctx, "PUT", objectPath(t, id), nil, body)
	if err != nil {
		return err
	}

	// DHIS2 may answer 200 with an import report describing a rejection.
	var report importReport
	if len(bytes.TrimSpace(resp)) > 0 && json.Unmarshal(resp, &report) == nil {
		if strings.EqualFold(report.Status, "ERROR") {
			msg := report.Message
			if msg == "" {
				msg = "import rejected"
			}
			return fmt.Errorf("updating %s/%s: %s", t.Plural, id, msg)
		}
	}
	return nil
}

func objectPath(t dedupe.ObjectType, id string) string {
	return "api/" + t.Plural + "/" + url.PathEscape(id)
}
