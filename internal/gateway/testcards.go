package gateway

type cardOutcome struct {
	Status Status
	Reason string
}

// testCards pins QA card numbers to fixed outcomes. Everything else goes through the weighted draw.
var testCards = map[string]cardOutcome{
	"4111111111111111": {StatusApproved, "approved by issuer"},
	"4242424242424242": {StatusApproved, "approved by issuer"},
	"5555555555554444": {StatusApproved, "approved by issuer"},
	"378282246310005":  {StatusApproved, "approved by issuer"},
	"6362970000457013": {StatusApproved, "approved by issuer"},
	"4000000000000002": {StatusDeclined, "card declined"},
	"4000000000009995": {StatusDeclined, "insufficient funds"},
	"4000000000000069": {StatusDeclined, "expired card"},
	"4000000000000127": {StatusDeclined, "incorrect security code"},
	"4000000000000259": {StatusDeclined, "suspected fraud"},
	"4000000000000119": {StatusProcessing, "pending issuer review"},
}

var randomDeclineReasons = []string{
	"card declined",
	"insufficient funds",
	"do not honor",
	"transaction not permitted",
}

// TestCardOutcome reports the fixed outcome for a QA card number, if it has one.
func TestCardOutcome(pan string) (Status, string, bool) {
	outcome, ok := testCards[pan]
	return outcome.Status, outcome.Reason, ok
}
