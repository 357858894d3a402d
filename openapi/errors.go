package openapi

import "fmt"

// ConflictError is returned when a component name is registered a second
// time with a structurally different body. Identical re-registration is a
// no-op and does not produce this error.
type ConflictError struct {
	Name string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("openapi: conflicting definitions of `%s`", e.Name)
}

// UnresolvedTypeError is returned when a string annotation names a type
// that was never registered with the TypeRegistry.
type UnresolvedTypeError struct {
	Name string
}

func (e *UnresolvedTypeError) Error() string {
	return fmt.Sprintf("openapi: cannot resolve type reference `%s`", e.Name)
}

// InvalidAnnotationError is returned for annotation values that cannot
// denote a type, such as nil. "No type" is expressed by omitting the
// annotation, not by passing a null value.
type InvalidAnnotationError struct {
	Value any
}

func (e *InvalidAnnotationError) Error() string {
	return fmt.Sprintf("openapi: invalid type annotation %v", e.Value)
}

// UnionRequiresRegistryError is returned when a union type is converted by
// a Converter that has no Registry. Union schemas must be registered by
// name; they cannot be inlined at arbitrary nesting depth without risking
// duplicate definitions.
type UnionRequiresRegistryError struct {
	Name string
}

func (e *UnionRequiresRegistryError) Error() string {
	return fmt.Sprintf("openapi: union type `%s` cannot be converted without a registry", e.Name)
}
