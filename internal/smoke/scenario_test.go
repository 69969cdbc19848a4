package smoke

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultScenario(t *testing.T) {
	sc := DefaultScenario()

	assert.Equal(t, "https://demoqa.com/text-box", sc.ExpectedURL)
	assert.Equal(t, "https://jsonplaceholder.typicode.com/posts/1", sc.API.URL)
	assert.Equal(t, []string{"userId", "id", "title", "body"}, sc.API.RequiredKeys)
	require.NoError(t, sc.Form.Validate())

	for _, sel := range []string{
		sc.Selectors.NameResult, sc.Selectors.EmailResult,
		sc.Selectors.CurrentAddressResult, sc.Selectors.PermanentAddressResult,
	} {
		assert.True(t, strings.HasPrefix(sel, sc.Selectors.Output+" "), sel)
	}
}

func TestFixtureScenario(t *testing.T) {
	sc := FixtureScenario("http://127.0.0.1:4567/")

	assert.Equal(t, "http://127.0.0.1:4567/text-box", sc.ExpectedURL)
	assert.Equal(t, "http://127.0.0.1:4567/posts/1", sc.API.URL)
	assert.Equal(t, DefaultFormData(), sc.Form)

	// the production check must not be mutated through the copy
	assert.Equal(t, "https://jsonplaceholder.typicode.com/posts/1", DefaultScenario().API.URL)
}

func TestFormDataValidate(t *testing.T) {
	err := FormData{Name: "a"}.Validate()
	require.Error(t, err)
	assert.Equal(t, "form data has empty fields: email, current address, permanent address", err.Error())
}
