package commands

import (
	"encoding/json"
	"reflect"

	"github.com/ggoodman/typehierarchy-go/typehierarchy"
	"github.com/invopop/jsonschema"
	"go.lsp.dev/protocol"
)

// Command describes one command and the JSON schema of its argument.
type Command struct {
	Name        string
	Description string
	Argument    *jsonschema.Schema
}

var rawMessageType = reflect.TypeOf(json.RawMessage(nil))

// reflectSchema reflects A into an inline object schema.
func reflectSchema[A any]() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference: true, // inline defs
		ExpandedStruct: true, // put struct at root
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			// Opaque provider data accepts any JSON value.
			if t == rawMessageType {
				return &jsonschema.Schema{}
			}
			return nil
		},
	}
	return r.Reflect(new(A))
}

// Commands describes the commands the dispatcher implements.
func (d *Dispatcher) Commands() []Command {
	return []Command{
		{
			Name:        PrepareCommand,
			Description: "Prepare a type hierarchy at a document location and return its root item.",
			Argument:    reflectSchema[protocol.Location](),
		},
		{
			Name:        SupertypesCommand,
			Description: "List the supertypes of a type hierarchy item.",
			Argument:    reflectSchema[typehierarchy.Item](),
		},
		{
			Name:        SubtypesCommand,
			Description: "List the subtypes of a type hierarchy item.",
			Argument:    reflectSchema[typehierarchy.Item](),
		},
	}
}
