package efl

import "testing"

func TestDetectTOULanguage(t *testing.T) {
	cases := []struct {
		name string
		text string
		want bool
	}{
		{"free nights", "Enjoy FREE Nights from 9pm to 7am every day!", true},
		{"weekends free", "Weekends free all year long", true},
		{"time of use", "This is a time-of-use product.", true},
		{"off peak", "Off-peak hours are billed at a lower rate.", true},
		{"hours window", "Free electricity between the hours of 8 PM and 6 AM.", true},
		{"plain fixed", "Energy Charge: 9.5 cents per kWh. Fixed rate for 12 months.", false},
		{"nightly mention", "Visit our website nightly for updates.", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			phrase, got := DetectTOULanguage(tc.text)
			if got != tc.want {
				t.Errorf("DetectTOULanguage(%q) = %v, want %v", tc.text, got, tc.want)
			}
			if got && phrase == "" {
				t.Errorf("matched but returned empty phrase")
			}
		})
	}
}

func TestDetectIndexedPricing(t *testing.T) {
	cases := []struct {
		name string
		text string
		want bool
	}{
		{"indexed product", "This is an indexed product. The price you pay each month will vary.", true},
		{"formula", "Your price is determined by a pricing formula tied to ERCOT settlement.", true},
		{"wholesale", "Energy charges follow the wholesale market price in real time.", true},
		{"fixed plan", "Fixed rate of 10.9 cents per kWh for 24 months.", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			phrase, got := DetectIndexedPricing(tc.text)
			if got != tc.want {
				t.Errorf("DetectIndexedPricing(%q) = %v, want %v", tc.text, got, tc.want)
			}
			if got && phrase == "" {
				t.Errorf("matched but returned empty phrase")
			}
		})
	}
}
