package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsuredPersonJSON(t *testing.T) {
	t.Run("decodes the wire format", func(t *testing.T) {
		body := `{
			"identificationNumber": 100,
			"firstName": "Ana",
			"firstSurname": "Diaz",
			"secondSurname": "Lopez",
			"phone": "555",
			"email": "a@b.com",
			"birthDate": "1990-01-01",
			"insuredValue": 1000.50
		}`
		var p InsuredPerson
		require.NoError(t, json.Unmarshal([]byte(body), &p))

		assert.Equal(t, int64(100), p.IdentificationNumber)
		assert.True(t, p.BirthDate.Equal(NewDate(1990, time.January, 1)))
		assert.True(t, p.InsuredValue.Valid)
		assert.True(t, p.InsuredValue.Decimal.Equal(decimal.RequireFromString("1000.5")))
		assert.Nil(t, p.MiddleName)
	})

	t.Run("absent insured value and birth date stay absent", func(t *testing.T) {
		var p InsuredPerson
		require.NoError(t, json.Unmarshal([]byte(`{"identificationNumber":1,"birthDate":null}`), &p))
		assert.False(t, p.InsuredValue.Valid)
		assert.True(t, p.BirthDate.IsZero())
	})

	t.Run("accepts date-time birth dates", func(t *testing.T) {
		var p InsuredPerson
		require.NoError(t, json.Unmarshal([]byte(`{"birthDate":"1990-01-01T00:00:00"}`), &p))
		assert.Equal(t, "1990-01-01", p.BirthDate.String())
	})

	t.Run("rejects malformed birth dates", func(t *testing.T) {
		var p InsuredPerson
		require.Error(t, json.Unmarshal([]byte(`{"birthDate":"01/01/1990"}`), &p))
	})

	t.Run("encodes value as number and hides version", func(t *testing.T) {
		p := InsuredPerson{
			IdentificationNumber: 7,
			BirthDate:            NewDate(1985, time.March, 9),
			InsuredValue:         decimal.NewNullDecimal(decimal.NewFromInt(2000)),
			Version:              3,
		}
		out, err := json.Marshal(p)
		require.NoError(t, err)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(out, &raw))
		assert.Equal(t, "1985-03-09", raw["birthDate"])
		assert.Equal(t, float64(2000), raw["insuredValue"])
		assert.NotContains(t, raw, "Version")
		assert.NotContains(t, raw, "version")
		assert.NotContains(t, raw, "notes")
	})

	t.Run("keeps every decimal digit and leaves other decimals quoted", func(t *testing.T) {
		p := InsuredPerson{InsuredValue: decimal.NewNullDecimal(decimal.RequireFromString("1000.555"))}
		out, err := json.Marshal(&p)
		require.NoError(t, err)
		assert.Contains(t, string(out), `"insuredValue":1000.555`)

		var back InsuredPerson
		require.NoError(t, json.Unmarshal(out, &back))
		assert.True(t, back.InsuredValue.Decimal.Equal(p.InsuredValue.Decimal))

		plain, err := json.Marshal(decimal.RequireFromString("1.5"))
		require.NoError(t, err)
		assert.Equal(t, `"1.5"`, string(plain))
	})

	t.Run("absent value encodes as null", func(t *testing.T) {
		out, err := json.Marshal(InsuredPerson{})
		require.NoError(t, err)
		assert.Contains(t, string(out), `"insuredValue":null`)
	})
}

func TestCloneIsDeep(t *testing.T) {
	notes := "vip"
	p := &InsuredPerson{IdentificationNumber: 1, Notes: &notes}
	c := p.Clone()
	*c.Notes = "changed"
	assert.Equal(t, "vip", *p.Notes)
	assert.True(t, p.Equal(p.Clone()))
}

func TestEqualComparesDecimalsNumerically(t *testing.T) {
	a := &InsuredPerson{InsuredValue: decimal.NewNullDecimal(decimal.RequireFromString("1000"))}
	b := &InsuredPerson{InsuredValue: decimal.NewNullDecimal(decimal.RequireFromString("1000.00"))}
	assert.True(t, a.Equal(b))

	b.InsuredValue = decimal.NewNullDecimal(decimal.RequireFromString("2000"))
	assert.False(t, a.Equal(b))
}

func TestFullName(t *testing.T) {
	middle := "Maria"
	p := &InsuredPerson{FirstName: "Ana", MiddleName: &middle, FirstSurname: "Diaz", SecondSurname: "Lopez"}
	assert.Equal(t, "Ana Maria Diaz Lopez", p.FullName())
}
