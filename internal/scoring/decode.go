package scoring

import (
	"encoding/json"
	"encoding/xml"
	"math"
	"strconv"
	"strings"
)

// The oracle answers in several shapes. Normalization treats each shape as an
// explicit variant tried in priority order; anything else falls through to a
// single malformed-response error:
//
//  1. a bare numeric body, plain text or JSON number
//  2. a JSON object with a top-level numeric "fraud_probability" or "result"
//  3. a JSON object whose "data" is numeric, an object as in (2), or a
//     string holding an XML document with a <fraud_probability> element
//
// An "error" field at any of these levels wins over any probability.

type envelope struct {
	FraudProbability json.RawMessage `json:"fraud_probability"`
	Result           json.RawMessage `json:"result"`
	Data             json.RawMessage `json:"data"`
	Error            json.RawMessage `json:"error"`
}

// Normalize extracts a fraud probability in [0, 1] from a raw response body.
func Normalize(payload []byte) (float64, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return 0, &Error{Kind: KindMalformed, msg: "empty response body"}
	}

	// Variant 1: bare number.
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return checkRange(v)
	}

	var env envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return 0, &Error{Kind: KindMalformed, msg: "response is neither numeric nor a JSON object", err: err}
	}
	return env.probability(true)
}

// probability resolves the envelope, descending into "data" at most once.
func (e envelope) probability(allowData bool) (float64, error) {
	if msg, ok := errorMessage(e.Error); ok {
		return 0, &Error{Kind: KindUnavailable, msg: "oracle reported error: " + msg}
	}

	// Variant 2: top-level probability field.
	if v, ok, err := numberFrom(e.FraudProbability); ok || err != nil {
		if err != nil {
			return 0, err
		}
		return checkRange(v)
	}
	if v, ok, err := numberFrom(e.Result); ok || err != nil {
		if err != nil {
			return 0, err
		}
		return checkRange(v)
	}

	// Variant 3: nested data payload.
	if allowData && len(e.Data) > 0 && string(e.Data) != "null" {
		return dataProbability(e.Data)
	}

	return 0, &Error{Kind: KindMalformed, msg: "no probability field in response"}
}

func dataProbability(data json.RawMessage) (float64, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return 0, &Error{Kind: KindMalformed, msg: "empty data field"}
	}

	switch trimmed[0] {
	case '{':
		var inner envelope
		if err := json.Unmarshal(data, &inner); err != nil {
			return 0, &Error{Kind: KindMalformed, msg: "unparseable data object", err: err}
		}
		return inner.probability(false)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, &Error{Kind: KindMalformed, msg: "unparseable data string", err: err}
		}
		return xmlProbability(s)
	default:
		if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return checkRange(v)
		}
		return 0, &Error{Kind: KindMalformed, msg: "data field is not numeric, object or string"}
	}
}

// xmlProbability scans an inner XML document for a fraud_probability element.
func xmlProbability(doc string) (float64, error) {
	dec := xml.NewDecoder(strings.NewReader(doc))
	for {
		tok, err := dec.Token()
		if err != nil {
			return 0, &Error{Kind: KindMalformed, msg: "unparseable inner XML document", err: err}
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "fraud_probability" {
			continue
		}
		var value string
		if err := dec.DecodeElement(&value, &start); err != nil {
			return 0, &Error{Kind: KindMalformed, msg: "unreadable fraud_probability element", err: err}
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0, &Error{Kind: KindMalformed, msg: "non-numeric fraud_probability element", err: err}
		}
		return checkRange(v)
	}
}

// numberFrom parses a raw JSON value as a number. ok reports presence; a
// present but non-numeric value is malformed.
func numberFrom(raw json.RawMessage) (float64, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, true, &Error{Kind: KindMalformed, msg: "probability field is not numeric", err: err}
	}
	return v, true, nil
}

func errorMessage(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return string(raw), true
}

func checkRange(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
		return 0, &Error{Kind: KindMalformed, msg: "probability " + strconv.FormatFloat(v, 'g', -1, 64) + " outside [0, 1]"}
	}
	return v, nil
}
