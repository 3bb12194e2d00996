package plugin

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/pkg/errors"
)

// XML documents are described as nested objects with a single root member.
// Keys starting with "@" are attributes, "#text" is the element text and
// arrays are repeated sibling elements:
//
//	{"order": {"@id": "1", "item": [{"#text": "a"}, {"#text": "b"}]}}
//
// Decoding reverses the mapping. An element without attributes or children
// decodes to its text, and all leaf values are strings.
const (
	xmlAttrPrefix = "@"
	xmlTextKey    = "#text"
)

type xmlGenerator struct{}

// NewXML returns the XML plugin generator.
func NewXML() Generator { return xmlGenerator{} }

func (xmlGenerator) Name() string    { return "xml" }
func (xmlGenerator) Version() string { return "0.3.0" }

func (xmlGenerator) Schema() string {
	return `{"type": "object", "minProperties": 1, "maxProperties": 1}`
}

func (xmlGenerator) ContentTypes() []string {
	return []string{"application/xml", "text/xml", "+xml"}
}

func (xmlGenerator) Generate(_ context.Context, _ string, example any) ([]byte, error) {
	root, ok := example.(map[string]any)
	if !ok || len(root) != 1 {
		return nil, errors.New("xml content needs exactly one root element")
	}
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	for tag, v := range root {
		if err := writeXML(&doc.Element, tag, v); err != nil {
			return nil, err
		}
	}
	return doc.WriteToBytes()
}

func writeXML(parent *etree.Element, tag string, v any) error {
	if strings.HasPrefix(tag, xmlAttrPrefix) || tag == xmlTextKey {
		return errors.Errorf("%q cannot be used as an element name", tag)
	}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if err := writeXML(parent, tag, item); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		el := parent.CreateElement(tag)
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch {
			case k == xmlTextKey:
				el.SetText(xmlText(t[k]))
			case strings.HasPrefix(k, xmlAttrPrefix):
				el.CreateAttr(strings.TrimPrefix(k, xmlAttrPrefix), xmlText(t[k]))
			default:
				if err := writeXML(el, k, t[k]); err != nil {
					return err
				}
			}
		}
		return nil
	default:
		parent.CreateElement(tag).SetText(xmlText(v))
		return nil
	}
}

func xmlText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func (xmlGenerator) Decode(_ string, body []byte) (any, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, errors.Wrap(err, "decode xml body")
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.New("decode xml body: no root element")
	}
	return map[string]any{root.Tag: readXML(root)}, nil
}

func readXML(el *etree.Element) any {
	children := el.ChildElements()
	text := strings.TrimSpace(el.Text())
	if len(children) == 0 && len(el.Attr) == 0 {
		return text
	}

	out := make(map[string]any, len(children)+len(el.Attr)+1)
	for _, a := range el.Attr {
		if a.Space == "xmlns" || a.Key == "xmlns" {
			continue
		}
		out[xmlAttrPrefix+a.Key] = a.Value
	}
	for _, c := range children {
		v := readXML(c)
		switch existing := out[c.Tag].(type) {
		case nil:
			out[c.Tag] = v
		case []any:
			out[c.Tag] = append(existing, v)
		default:
			out[c.Tag] = []any{existing, v}
		}
	}
	if text != "" {
		out[xmlTextKey] = text
	}
	return out
}
