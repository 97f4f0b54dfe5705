package todo

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	//go:embed schemas/create.json
	createSchemaJSON string

	//go:embed schemas/update.json
	updateSchemaJSON string

	createSchema = jsonschema.MustCompileString("todo-create.json", createSchemaJSON)
	updateSchema = jsonschema.MustCompileString("todo-update.json", updateSchemaJSON)
)

// text is a string field that also accepts JSON numbers and booleans,
// stored in their string form.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		*t = text(v)
	case float64:
		*t = text(strconv.FormatFloat(v, 'f', -1, 64))
	case bool:
		*t = text(strconv.FormatBool(v))
	default:
		return fmt.Errorf("cannot cast %s to string", b)
	}
	return nil
}

func (t *text) ptr() *string {
	if t == nil {
		return nil
	}
	return StringPtr(string(*t))
}

type draftBody struct {
	Title       text `json:"title"`
	Description text `json:"description"`
}

type patchBody struct {
	Title       *text   `json:"title"`
	Description *text   `json:"description"`
	Status      *Status `json:"status"`
}

// DecodeDraft validates a create body and decodes it into a Draft.
// An empty body is treated as an empty object.
func DecodeDraft(body []byte) (Draft, error) {
	if err := validateBody(createSchema, body); err != nil {
		return Draft{}, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return Draft{}, nil
	}
	var b draftBody
	if err := json.Unmarshal(body, &b); err != nil {
		return Draft{}, &ValidationError{Message: err.Error()}
	}
	return Draft{Title: string(b.Title), Description: string(b.Description)}, nil
}

// DecodePatch validates an update body and decodes it into a Patch.
// Fields outside the todo's mutable set are ignored.
func DecodePatch(body []byte) (Patch, error) {
	if err := validateBody(updateSchema, body); err != nil {
		return Patch{}, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return Patch{}, nil
	}
	var b patchBody
	if err := json.Unmarshal(body, &b); err != nil {
		return Patch{}, &ValidationError{Message: err.Error()}
	}
	p := Patch{Title: b.Title.ptr(), Description: b.Description.ptr(), Status: b.Status}
	return p, p.Validate()
}

func validateBody(schema *jsonschema.Schema, body []byte) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return &ValidationError{Message: fmt.Sprintf("invalid JSON body: %v", err)}
	}

	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return &ValidationError{Message: err.Error()}
		}
		return schemaError(ve)
	}
	return nil
}

// schemaError flattens the leaf causes of a schema failure into one ValidationError.
func schemaError(ve *jsonschema.ValidationError) *ValidationError {
	var fields, messages []string
	var collect func(*jsonschema.ValidationError)
	collect = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			field := strings.TrimPrefix(strings.TrimPrefix(e.InstanceLocation, "#"), "/")
			fields = append(fields, field)
			if field == "" {
				messages = append(messages, e.Message)
			} else {
				messages = append(messages, field+": "+e.Message)
			}
			return
		}
		for _, cause := range e.Causes {
			collect(cause)
		}
	}
	collect(ve)

	out := &ValidationError{Message: "Todo validation failed: " + strings.Join(messages, ", ")}
	if len(fields) == 1 {
		out.Field = fields[0]
	}
	return out
}
