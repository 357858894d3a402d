package openapi

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
)

// TypeRegistry resolves type annotations to concrete reflect.Types and
// records union metadata for interface types.
//
// Annotations appear in three forms: a concrete reflect.Type, a value
// prototype (e.g. UserResponse{}), or a string forward reference. Forward
// references must be bound explicitly with RegisterType before they are
// resolved; there is no scope or call-stack inspection.
type TypeRegistry struct {
	names  map[string]reflect.Type
	unions map[reflect.Type]*unionInfo
}

// unionInfo describes either a plain union (ordered variants) or a
// discriminated union (tag property plus tag→variant mapping).
type unionInfo struct {
	name         string
	variants     []reflect.Type
	propertyName string
	mapping      map[string]reflect.Type
}

// NewTypeRegistry creates an empty type registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		names:  make(map[string]reflect.Type),
		unions: make(map[reflect.Type]*unionInfo),
	}
}

// RegisterType binds a forward-reference name to the type of the given
// prototype value. Binding a name twice to the same type is a no-op;
// binding it to a different type fails with *ConflictError.
func (tr *TypeRegistry) RegisterType(name string, prototype any) error {
	t, err := tr.Resolve(prototype)
	if err != nil {
		return err
	}

	if existing, ok := tr.names[name]; ok {
		if existing != t {
			return &ConflictError{Name: name}
		}
		return nil
	}

	tr.names[name] = t
	return nil
}

// RegisterUnion declares that the given interface may hold any of the
// variant types. The iface argument is a pointer-to-interface token, e.g.
// (*Shape)(nil); variants are value prototypes or reflect.Types.
// Re-registering identical union metadata is a no-op; different metadata
// for the same interface fails with *ConflictError.
func (tr *TypeRegistry) RegisterUnion(iface any, name string, variants ...any) error {
	it, err := interfaceType(iface)
	if err != nil {
		return err
	}

	info := &unionInfo{name: name}
	for _, v := range variants {
		vt, err := tr.Resolve(v)
		if err != nil {
			return err
		}
		info.variants = append(info.variants, vt)
	}

	return tr.putUnion(it, info)
}

// RegisterDiscriminatedUnion declares that the given interface holds one of
// the mapped variant types, selected by the value of the named property.
// Mapping keys are the tag values; mapping values are variant prototypes.
func (tr *TypeRegistry) RegisterDiscriminatedUnion(iface any, name, propertyName string, mapping map[string]any) error {
	it, err := interfaceType(iface)
	if err != nil {
		return err
	}

	info := &unionInfo{
		name:         name,
		propertyName: propertyName,
		mapping:      make(map[string]reflect.Type, len(mapping)),
	}
	for tag, v := range mapping {
		vt, err := tr.Resolve(v)
		if err != nil {
			return err
		}
		info.mapping[tag] = vt
	}

	return tr.putUnion(it, info)
}

func (tr *TypeRegistry) putUnion(it reflect.Type, info *unionInfo) error {
	if existing, ok := tr.unions[it]; ok {
		if !existing.equal(info) {
			return &ConflictError{Name: info.name}
		}
		return nil
	}

	tr.unions[it] = info
	return nil
}

// unionFor returns the union metadata recorded for an interface type.
func (tr *TypeRegistry) unionFor(t reflect.Type) (*unionInfo, bool) {
	info, ok := tr.unions[t]
	return info, ok
}

// Resolve maps an annotation to a concrete type.
//
//   - nil is rejected with *InvalidAnnotationError: "no type" must be
//     expressed by omitting the annotation.
//   - A reflect.Type passes through unchanged.
//   - A string is looked up among registered names; unknown names fail
//     with *UnresolvedTypeError.
//   - Any other value resolves to its own type (prototype form).
func (tr *TypeRegistry) Resolve(annotation any) (reflect.Type, error) {
	switch v := annotation.(type) {
	case nil:
		return nil, &InvalidAnnotationError{Value: annotation}
	case reflect.Type:
		return v, nil
	case string:
		t, ok := tr.names[v]
		if !ok {
			return nil, &UnresolvedTypeError{Name: v}
		}
		return t, nil
	default:
		return reflect.TypeOf(annotation), nil
	}
}

func (u *unionInfo) equal(other *unionInfo) bool {
	if u.name != other.name || u.propertyName != other.propertyName {
		return false
	}
	if !slices.Equal(u.variants, other.variants) {
		return false
	}
	if len(u.mapping) != len(other.mapping) {
		return false
	}
	for tag, t := range u.mapping {
		if other.mapping[tag] != t {
			return false
		}
	}
	return true
}

// sortedTags returns the mapping keys in lexical order so conversion output
// is deterministic.
func (u *unionInfo) sortedTags() []string {
	tags := make([]string, 0, len(u.mapping))
	for tag := range u.mapping {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// interfaceType extracts the interface type from a pointer-to-interface
// token such as (*Shape)(nil).
func interfaceType(iface any) (reflect.Type, error) {
	t := reflect.TypeOf(iface)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Interface {
		return nil, fmt.Errorf("openapi: union target must be a pointer-to-interface token such as (*Shape)(nil), got %T", iface)
	}
	return t.Elem(), nil
}
