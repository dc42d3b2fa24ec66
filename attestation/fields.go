package attestation

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/ruteri/tee-reporteer/interfaces"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// ProtoFields flattens m into one field per scalar, in descriptor order.
// Nested messages use dotted names, repeated fields are indexed and map
// entries are sorted by key, so equal messages always render identically.
// Bytes are hex encoded and enums use their value names.
func ProtoFields(m proto.Message) []interfaces.ReportField {
	if m == nil {
		return nil
	}
	return appendMessageFields(nil, "", m.ProtoReflect())
}

func appendMessageFields(out []interfaces.ReportField, prefix string, m protoreflect.Message) []interfaces.ReportField {
	fds := m.Descriptor().Fields()
	for i := 0; i < fds.Len(); i++ {
		fd := fds.Get(i)
		name := prefix + string(fd.Name())

		switch {
		case fd.IsList():
			list := m.Get(fd).List()
			if list.Len() == 0 {
				out = append(out, interfaces.ReportField{Name: name, Value: "[]"})
				continue
			}
			for j := 0; j < list.Len(); j++ {
				out = appendValue(out, fmt.Sprintf("%s[%d]", name, j), fd, list.Get(j))
			}

		case fd.IsMap():
			entries := m.Get(fd).Map()
			if entries.Len() == 0 {
				out = append(out, interfaces.ReportField{Name: name, Value: "{}"})
				continue
			}
			keys := make([]protoreflect.MapKey, 0, entries.Len())
			entries.Range(func(k protoreflect.MapKey, _ protoreflect.Value) bool {
				keys = append(keys, k)
				return true
			})
			sort.Slice(keys, func(a, b int) bool { return keys[a].String() < keys[b].String() })
			for _, k := range keys {
				out = appendValue(out, fmt.Sprintf("%s[%s]", name, k.String()), fd.MapValue(), entries.Get(k))
			}

		case fd.Message() != nil && !m.Has(fd):
			out = append(out, interfaces.ReportField{Name: name, Value: "<none>"})

		default:
			out = appendValue(out, name, fd, m.Get(fd))
		}
	}
	return out
}

func appendValue(out []interfaces.ReportField, name string, fd protoreflect.FieldDescriptor, v protoreflect.Value) []interfaces.ReportField {
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return appendMessageFields(out, name+".", v.Message())
	case protoreflect.BytesKind:
		return append(out, interfaces.ReportField{Name: name, Value: hex.EncodeToString(v.Bytes())})
	case protoreflect.EnumKind:
		if ev := fd.Enum().Values().ByNumber(v.Enum()); ev != nil {
			return append(out, interfaces.ReportField{Name: name, Value: string(ev.Name())})
		}
		return append(out, interfaces.ReportField{Name: name, Value: strconv.Itoa(int(v.Enum()))})
	default:
		return append(out, interfaces.ReportField{Name: name, Value: v.String()})
	}
}
