package protocol

import (
	"errors"
	"strings"
	"testing"
)

func TestEncode_Literal(t *testing.T) {
	got, err := Encode(StateRequest("Salon"), FormatLiteral)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := `{'FROM': 'Django', 'TO': 'Salon', 'COMMAND': 'STATE'}`
	if string(got) != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestEncode_LiteralQuoting(t *testing.T) {
	got, err := Encode(ModeCommand("l'entrée", "ECO"), FormatLiteral)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := `{'FROM': 'Django', 'TO': "l'entrée", 'COMMAND': 'ECO'}`
	if string(got) != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestEncode_JSON(t *testing.T) {
	got, err := Encode(ModeCommand("Cuisine", "COMFORT"), FormatJSON)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := `{"FROM":"Django","TO":"Cuisine","COMMAND":"COMFORT"}`
	if string(got) != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestEncode_RejectsEmptyFields(t *testing.T) {
	if _, err := Encode(Message{From: "Django", To: "", Command: "ECO"}, FormatLiteral); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDecode_AcceptsBothFormats(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    Message
	}{
		{"literal", `{'FROM': 'Salon', 'TO': 'Django', 'COMMAND': 'ECO'}`, Message{"Salon", "Django", "ECO"}},
		{"literal_key_order", `{'COMMAND': 'OFF', 'TO': 'Django', 'FROM': 'Chambre'}`, Message{"Chambre", "Django", "OFF"}},
		{"literal_double_quotes", `{"FROM": "l'entrée", 'TO': 'Django', 'COMMAND': 'HORS_GEL'}`, Message{"l'entrée", "Django", "HORS_GEL"}},
		{"literal_escape", `{'FROM': 'a\'b', 'TO': 'Django', 'COMMAND': 'ECO'}`, Message{"a'b", "Django", "ECO"}},
		{"literal_trailing_comma", `{'FROM': 'x', 'TO': 'y', 'COMMAND': 'z',}`, Message{"x", "y", "z"}},
		{"json", `{"FROM":"Salon","TO":"Django","COMMAND":"COMFORT"}`, Message{"Salon", "Django", "COMFORT"}},
		{"json_spaces", "  {\n \"TO\": \"Django\", \"FROM\": \"S\", \"COMMAND\": \"X\" }  ", Message{"S", "Django", "X"}},
		{"unknown_mode_kept_verbatim", `{'FROM': 'S', 'TO': 'Django', 'COMMAND': 'BOOST'}`, Message{"S", "Django", "BOOST"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode([]byte(tc.payload))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestDecode_RejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":          ``,
		"not_a_map":      `['FROM', 'TO']`,
		"plain_text":     `hello`,
		"missing_key":    `{'FROM': 'S', 'TO': 'Django'}`,
		"extra_key":      `{'FROM': 'S', 'TO': 'Django', 'COMMAND': 'ECO', 'X': 'y'}`,
		"wrong_key":      `{'FROM': 'S', 'TO': 'Django', 'CMD': 'ECO'}`,
		"number_value":   `{'FROM': 'S', 'TO': 'Django', 'COMMAND': 1}`,
		"json_number":    `{"FROM":"S","TO":"Django","COMMAND":1}`,
		"nested":         `{'FROM': {'a': 'b'}, 'TO': 'Django', 'COMMAND': 'ECO'}`,
		"empty_value":    `{'FROM': '', 'TO': 'Django', 'COMMAND': 'ECO'}`,
		"duplicate_key":  `{'FROM': 'S', 'FROM': 'T', 'TO': 'Django'}`,
		"unterminated":   `{'FROM': 'S, 'TO': 'Django', 'COMMAND': 'ECO'}`,
		"trailing_data":  `{'FROM': 'S', 'TO': 'Django', 'COMMAND': 'ECO'} x`,
		"code_injection": `__import__('os').system('id')`,
		"empty_map":      `{}`,
		"json_dup_from":  `{"FROM":"Evil","FROM":"Salon","TO":"Django","COMMAND":"ECO"}`,
		"json_nested":    `{"FROM":{"a":"b"},"TO":"Django","COMMAND":"ECO"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode([]byte(payload)); !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed for %q, got %v", payload, err)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	msgs := []Message{
		StateRequest("Salon"),
		ModeCommand(`back\slash`, "ECO"),
		{From: "Chambre", To: ControllerID, Command: `say "hi"`},
	}
	for _, f := range []Format{FormatLiteral, FormatJSON} {
		for _, m := range msgs {
			b, err := Encode(m, f)
			if err != nil {
				t.Fatalf("Encode(%v): %v", f, err)
			}
			got, err := Decode(b)
			if err != nil {
				t.Fatalf("Decode(%s): %v", b, err)
			}
			if got != m {
				t.Fatalf("%s: got %+v, want %+v", f, got, m)
			}
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatLiteral {
		t.Fatalf("default: got %q, %v", f, err)
	}
	if f, err := ParseFormat(" JSON "); err != nil || f != FormatJSON {
		t.Fatalf("json: got %q, %v", f, err)
	}
	if _, err := ParseFormat("xml"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestDecode_RepeatedKeyRejectedInBothFormats(t *testing.T) {
	payloads := []string{
		`{"FROM":"Evil","FROM":"Salon","TO":"Django","COMMAND":"ECO"}`,
		`{'FROM': 'Evil', 'FROM': 'Salon', 'TO': 'Django', 'COMMAND': 'ECO'}`,
	}
	for _, p := range payloads {
		m, err := Decode([]byte(p))
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("Decode(%s) = %+v, %v; want ErrMalformed", p, m, err)
		}
		if !strings.Contains(err.Error(), `duplicate key "FROM"`) {
			t.Fatalf("error %q does not name the repeated key", err)
		}
	}
}
