package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindForType(t *testing.T) {
	assert.Equal(t, KindNumber, KindForType("INT"))
	assert.Equal(t, KindNumber, KindForType("bigint(20)"))
	assert.Equal(t, KindNumber, KindForType("DECIMAL(10,2)"))
	assert.Equal(t, KindString, KindForType("varchar(255)"))
	assert.Equal(t, KindString, KindForType("TEXT"))
}

func TestColumnConvert(t *testing.T) {
	num := Column{Name: "score", Kind: KindNumber}
	text := Column{Name: "text", Kind: KindString}

	assert.Equal(t, Number(3), num.Convert([]byte("3")))
	assert.Equal(t, Number(7), num.Convert(int64(7)))
	assert.Equal(t, String("n/a"), num.Convert("n/a"))
	assert.Equal(t, String("42"), text.Convert([]byte("42")))
	assert.True(t, text.Convert(nil).IsNull())
}

func TestValueText(t *testing.T) {
	assert.Equal(t, "", Null().Text())
	assert.Equal(t, "buy milk", String("buy milk").Text())
	assert.Equal(t, "3", Number(3).Text())
	assert.Equal(t, "2.5", Number(2.5).Text())
}

func TestRowJSON(t *testing.T) {
	row := Row{"id": Number(1), "text": String("buy milk"), "category": Null()}
	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"text":"buy milk","category":null}`, string(data))

	var decoded Row
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, row, decoded)
	assert.True(t, decoded.Get("missing").IsNull())
}
