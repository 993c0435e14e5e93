package currency

import (
	"math"
	"testing"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func TestParse(t *testing.T) {
	for _, raw := range []string{"USD", "usd", " try ", "EUR"} {
		if _, err := Parse(raw); err != nil {
			t.Fatalf("Parse(%q) returned error: %v", raw, err)
		}
	}
	if _, err := Parse("GBP"); err == nil {
		t.Fatalf("expected error for unsupported currency")
	}
	if _, err := Parse(""); err == nil {
		t.Fatalf("expected error for empty currency")
	}
}

func TestToUSD_USDIsFixedPoint(t *testing.T) {
	table := Table{TRY: 34.50}
	got, lossy := table.ToUSD(123.45, USD)
	nearlyEqual(t, "ToUSD(USD)", got, 123.45)
	if lossy {
		t.Fatalf("USD conversion must never be lossy")
	}

	got, lossy = table.FromUSD(123.45, USD)
	nearlyEqual(t, "FromUSD(USD)", got, 123.45)
	if lossy {
		t.Fatalf("USD conversion must never be lossy")
	}
}

func TestRoundTripIdentity(t *testing.T) {
	table := Table{TRY: 34.50, EUR: 0.92}

	for _, c := range []Code{TRY, EUR} {
		for _, x := range []float64{0, 1, 17.35, 99999.99} {
			usd, lossy := table.ToUSD(x, c)
			if lossy {
				t.Fatalf("unexpected lossy conversion for %s", c)
			}
			back, lossy := table.FromUSD(usd, c)
			if lossy {
				t.Fatalf("unexpected lossy conversion for %s", c)
			}
			if math.Abs(back-x) > 1e-9 {
				t.Fatalf("round trip %s: got %v, want %v", c, back, x)
			}
		}
	}
}

func TestMissingRateFallsBackToIdentity(t *testing.T) {
	table := Table{TRY: 34.50}

	got, lossy := table.ToUSD(50, EUR)
	nearlyEqual(t, "ToUSD missing rate", got, 50)
	if !lossy {
		t.Fatalf("missing rate must be reported as lossy")
	}

	got, lossy = table.FromUSD(50, EUR)
	nearlyEqual(t, "FromUSD missing rate", got, 50)
	if !lossy {
		t.Fatalf("missing rate must be reported as lossy")
	}
}

func TestZeroRateTreatedAsMissing(t *testing.T) {
	table := Table{EUR: 0}

	got, lossy := table.ToUSD(10, EUR)
	nearlyEqual(t, "ToUSD zero rate", got, 10)
	if !lossy {
		t.Fatalf("zero rate must be reported as lossy")
	}
}

func TestRound2(t *testing.T) {
	nearlyEqual(t, "Round2(12.6875)", Round2(12.6875), 12.69)
	nearlyEqual(t, "Round2(12.684)", Round2(12.684), 12.68)
	nearlyEqual(t, "Round2(-1.005)", Round2(-1.005), -1.0)
	nearlyEqual(t, "Round2(0)", Round2(0), 0)
}
