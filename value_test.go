package klyptik

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		kind    Kind
		wantErr bool
	}{
		{name: "object", input: `{"a": 1}`, kind: KindObject},
		{name: "array", input: ` [1, "two", null, true] `, kind: KindArray},
		{name: "string", input: `"hi"`, kind: KindString},
		{name: "number", input: `-1.5e3`, kind: KindNumber},
		{name: "null", input: `null`, kind: KindNull},
		{name: "empty", input: ``, wantErr: true},
		{name: "trailing comma", input: `{"a": 1,}`, wantErr: true},
		{name: "bare key", input: `{a: 1}`, wantErr: true},
		{name: "single quotes", input: `{'a': 1}`, wantErr: true},
		{name: "trailing data", input: `{"a": 1} extra`, wantErr: true},
		{name: "two values", input: `{} {}`, wantErr: true},
		{name: "truncated", input: `{"a": [1, 2`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseValue(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrParse)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.kind, v.Kind())
		})
	}
}

func TestParseValueKeepsKeyOrder(t *testing.T) {
	v, err := ParseValue(`{"zeta": 1, "alpha": 2, "mid": {"b": 1, "a": 2}}`)
	require.NoError(t, err)

	var keys []string
	for _, m := range v.Members() {
		keys = append(keys, m.Key)
	}
	require.Equal(t, []string{"zeta", "alpha", "mid"}, keys)
	require.Equal(t, `{"zeta":1,"alpha":2,"mid":{"b":1,"a":2}}`, v.String())
}

func TestParseValueDuplicateKeys(t *testing.T) {
	v, err := ParseValue(`{"a": 1, "b": 2, "a": 3}`)
	require.NoError(t, err)
	require.Len(t, v.Members(), 2)
	require.Equal(t, `{"a":3,"b":2}`, v.String())
}

func TestParseValueDepthLimit(t *testing.T) {
	deep := strings.Repeat("[", maxDepth+2) + strings.Repeat("]", maxDepth+2)
	_, err := ParseValue(deep)
	require.ErrorIs(t, err, ErrParse)

	ok := strings.Repeat("[", 10) + strings.Repeat("]", 10)
	_, err = ParseValue(ok)
	require.NoError(t, err)
}

func TestValueNumbersKeepLiteral(t *testing.T) {
	v, err := ParseValue(`{"big": 12345678901234567890, "f": 1.50}`)
	require.NoError(t, err)
	require.Equal(t, `{"big":12345678901234567890,"f":1.50}`, v.String())
}

func TestValueMarshalDoesNotEscapeHTML(t *testing.T) {
	v := ObjectValue(Member{Key: "q", Value: StringValue("a < b & c > d")})
	data, err := v.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `{"q":"a < b & c > d"}`, string(data))
}

func TestValueWithWithout(t *testing.T) {
	orig := ObjectValue(
		Member{Key: "a", Value: NumberValue("1")},
		Member{Key: "b", Value: NumberValue("2")},
	)

	updated := orig.With("a", StringValue("x")).With("c", BoolValue(true))
	require.Equal(t, `{"a":"x","b":2,"c":true}`, updated.String())
	require.Equal(t, `{"a":1,"b":2}`, orig.String(), "With must not modify the receiver")

	require.Equal(t, `{"b":2}`, orig.Without("a").String())
	require.Equal(t, `{"a":1,"b":2}`, orig.Without("missing").String())
}

func TestValueEqual(t *testing.T) {
	a := ObjectValue(Member{Key: "x", Value: NumberValue("1")}, Member{Key: "y", Value: NullValue()})
	b := ObjectValue(Member{Key: "x", Value: NumberValue("1")}, Member{Key: "y", Value: NullValue()})
	reordered := ObjectValue(Member{Key: "y", Value: NullValue()}, Member{Key: "x", Value: NumberValue("1")})

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(reordered))
	require.False(t, StringValue("1").Equal(NumberValue("1")))
	require.True(t, ArrayValue().Equal(ArrayValue()))
}

func TestValueTransformVisitsObjectsBottomUp(t *testing.T) {
	v, err := ParseValue(`{"outer": [{"inner": {"leaf": 1}}]}`)
	require.NoError(t, err)

	var visited []string
	out := v.Transform(func(obj Value) Value {
		visited = append(visited, obj.Members()[0].Key)
		return obj.With("seen", BoolValue(true))
	})

	require.Equal(t, []string{"leaf", "inner", "outer"}, visited)
	require.Equal(t, `{"outer":[{"inner":{"leaf":1,"seen":true},"seen":true}],"seen":true}`, out.String())
	require.Equal(t, `{"outer":[{"inner":{"leaf":1}}]}`, v.String())
}

func TestValueUnmarshalJSON(t *testing.T) {
	var holder struct {
		Doc Value `json:"doc"`
	}
	err := json.Unmarshal([]byte(`{"doc": {"quiz": [], "title": "T"}}`), &holder)
	require.NoError(t, err)
	require.Equal(t, `{"quiz":[],"title":"T"}`, holder.Doc.String())
}
