package smoke

import (
	"errors"
	"strings"
	"time"

	"github.com/pinchtab/smoketab/internal/apicheck"
	"github.com/pinchtab/smoketab/internal/poll"
)

const (
	ExpectedURL   = "https://demoqa.com/text-box"
	SuccessMarker = "✅ All tests passed"

	outputTimeoutMessage = "Timed out waiting for the output section to render."
)

// FormData is the record typed into the form and expected back in the output.
type FormData struct {
	Name             string
	Email            string
	CurrentAddress   string
	PermanentAddress string
}

func DefaultFormData() FormData {
	return FormData{
		Name:             "John Doe",
		Email:            "john.doe@example.com",
		CurrentAddress:   "123 Main St",
		PermanentAddress: "456 Secondary St",
	}
}

func (f FormData) Validate() error {
	var missing []string
	if f.Name == "" {
		missing = append(missing, "name")
	}
	if f.Email == "" {
		missing = append(missing, "email")
	}
	if f.CurrentAddress == "" {
		missing = append(missing, "current address")
	}
	if f.PermanentAddress == "" {
		missing = append(missing, "permanent address")
	}
	if len(missing) > 0 {
		return errors.New("form data has empty fields: " + strings.Join(missing, ", "))
	}
	return nil
}

// Selectors address the text-box page. Result selectors are scoped to the
// output container since the page reuses the address ids on the inputs.
type Selectors struct {
	NameInput              string
	EmailInput             string
	CurrentAddressInput    string
	PermanentAddressInput  string
	Submit                 string
	Output                 string
	NameResult             string
	EmailResult            string
	CurrentAddressResult   string
	PermanentAddressResult string
}

func DefaultSelectors() Selectors {
	return Selectors{
		NameInput:              "#userName",
		EmailInput:             "#userEmail",
		CurrentAddressInput:    "#currentAddress",
		PermanentAddressInput:  "#permanentAddress",
		Submit:                 "#submit",
		Output:                 "#output",
		NameResult:             "#output #name",
		EmailResult:            "#output #email",
		CurrentAddressResult:   "#output #currentAddress",
		PermanentAddressResult: "#output #permanentAddress",
	}
}

// Wait bounds the poll for the output section.
type Wait struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Scenario is everything one run needs.
type Scenario struct {
	ExpectedURL string
	Form        FormData
	Selectors   Selectors
	Wait        Wait
	API         apicheck.Check
}

// DefaultScenario is the demoqa text-box run followed by the posts/1 check.
func DefaultScenario() Scenario {
	return Scenario{
		ExpectedURL: ExpectedURL,
		Form:        DefaultFormData(),
		Selectors:   DefaultSelectors(),
		Wait: Wait{
			Interval: poll.DefaultInterval,
			Timeout:  poll.DefaultTimeout,
		},
		API: apicheck.Default(),
	}
}

// FixtureScenario points the default scenario at a local fixture server
// rooted at baseURL.
func FixtureScenario(baseURL string) Scenario {
	base := strings.TrimRight(baseURL, "/")
	sc := DefaultScenario()
	sc.ExpectedURL = base + "/text-box"
	sc.API.URL = base + "/posts/1"
	return sc
}
