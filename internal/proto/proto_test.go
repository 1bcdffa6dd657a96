package proto

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseFrame_SplitsCommandAndPayload(t *testing.T) {
	f, err := ParseFrame([]byte(`MSG {"channel":"Development","character":"Alice","message":"hi"}`))
	if err != nil {
		t.Fatalf("expected parse success, got %v", err)
	}
	if f.Command != "MSG" {
		t.Fatalf("expected command MSG, got %q", f.Command)
	}
	if string(f.Payload) != `{"channel":"Development","character":"Alice","message":"hi"}` {
		t.Fatalf("unexpected payload %q", f.Payload)
	}
}

func TestParseFrame_BareToken(t *testing.T) {
	f, err := ParseFrame([]byte("PIN"))
	if err != nil {
		t.Fatalf("expected parse success, got %v", err)
	}
	if f.Command != "PIN" || f.Payload != nil {
		t.Fatalf("expected bare PIN, got %q %q", f.Command, f.Payload)
	}
}

func TestParseFrame_Empty(t *testing.T) {
	if _, err := ParseFrame(nil); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("expected ErrEmptyFrame, got %v", err)
	}
}

func TestParseFrame_CopiesPayload(t *testing.T) {
	raw := []byte(`HLO {"message":"welcome"}`)
	f, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("expected parse success, got %v", err)
	}

	// The transport reuses its read buffer; the payload must survive that.
	for i := range raw {
		raw[i] = 'x'
	}
	if string(f.Payload) != `{"message":"welcome"}` {
		t.Fatalf("payload aliases the read buffer: %q", f.Payload)
	}
}

// serverSamples holds one well-formed wire frame per documented inbound
// command.
var serverSamples = []string{
	`IDN {"character":"Alice"}`,
	`ERR {"number":2,"message":"The server has received identification from this account already."}`,
	`PIN`,
	`HLO {"message":"Welcome."}`,
	`CON {"count":4096}`,
	`VAR {"variable":"chat_max","value":4096}`,
	`VAR {"variable":"msg_flood","value":0.5}`,
	`VAR {"variable":"icon_blacklist","value":["Frontpage","Development"]}`,
	`LIS {"characters":[["Alice","Female","online",""],["Bob","Male","busy","writing"]]}`,
	`NLN {"identity":"Alice","gender":"Female","status":"online"}`,
	`FLN {"character":"Alice"}`,
	`STA {"status":"away","character":"Alice","statusmsg":"afk"}`,
	`STA {"status":"online","character":"Alice","statusmsg":""}`,
	`TPN {"character":"Alice","status":"typing"}`,
	`JCH {"channel":"Development","title":"Development","character":{"identity":"Alice"}}`,
	`LCH {"channel":"Development","character":"Alice"}`,
	`ICH {"channel":"Development","users":[{"identity":"Alice"},{"identity":"Bob"}],"mode":"both"}`,
	`CDS {"channel":"Development","description":"Talk about code."}`,
	`RMO {"channel":"Development","mode":"chat"}`,
	`CSO {"channel":"Development","character":"Alice"}`,
	`COL {"channel":"Development","oplist":["Alice","Bob"]}`,
	`COA {"channel":"Development","character":"Bob"}`,
	`COR {"channel":"Development","character":"Bob"}`,
	`CKU {"channel":"Development","operator":"Alice","character":"Bob"}`,
	`CBU {"channel":"Development","operator":"Alice","character":"Bob"}`,
	`CTU {"channel":"Development","operator":"Alice","character":"Bob","length":30}`,
	`MSG {"channel":"Development","character":"Alice","message":"hi"}`,
	`LRP {"channel":"Development","character":"Alice","message":"looking for rp"}`,
	`PRI {"character":"Alice","message":"hello"}`,
	`SYS {"channel":"Development","message":"Your admin status has been revoked."}`,
	`BRO {"message":"Maintenance in 10 minutes.","character":"Admin"}`,
	`ADL {"ops":["Alice","Bob"]}`,
	`AOP {"character":"Alice"}`,
	`DOP {"character":"Alice"}`,
	`FRL {"characters":["Alice","Bob"]}`,
	`IGN {"action":"init","characters":["Troll"]}`,
	`IGN {"action":"add","character":"Troll"}`,
	`CHA {"channels":[{"name":"Frontpage","mode":"both","characters":120}]}`,
	`ORS {"channels":[{"name":"ADH-1234","title":"Tea House","characters":7}]}`,
	`CIU {"sender":"Alice","title":"Tea House","name":"ADH-1234"}`,
	`RLL {"type":"dice","channel":"Development","character":"Alice","message":"rolls 1d20: 17","rolls":["1d20"],"results":[17],"endresult":17}`,
	`RLL {"type":"bottle","channel":"Development","character":"Alice","message":"spins the bottle","target":"Bob"}`,
	`RTB {"type":"note","character":"Alice"}`,
	`SFC {"action":"report","character":"Alice","report":"spam","logid":42}`,
	`UPT {"time":1700000000,"starttime":1690000000,"startstring":"Mon, 01 Jan 2024","accepted":1000000,"channels":800,"users":4096,"maxusers":6000}`,
	`PRD {"type":"start","message":"Profile of Alice"}`,
	`PRD {"type":"info","key":"Age","value":"27"}`,
	`KID {"type":"start","message":"Kinks of Alice"}`,
	`KID {"type":"custom","key":101,"value":3}`,
}

func TestFrameRoundTrip_ByteIdentical(t *testing.T) {
	for _, sample := range serverSamples {
		f, err := ParseFrame([]byte(sample))
		if err != nil {
			t.Fatalf("parse %q: %v", sample, err)
		}
		out, err := f.Encode()
		if err != nil {
			t.Fatalf("encode %q: %v", sample, err)
		}
		if !bytes.Equal(out, []byte(sample)) {
			t.Fatalf("round trip changed frame:\n in: %s\nout: %s", sample, out)
		}
	}
}

func TestDecodeServer_AllDocumentedCommands(t *testing.T) {
	for _, sample := range serverSamples {
		f, err := ParseFrame([]byte(sample))
		if err != nil {
			t.Fatalf("parse %q: %v", sample, err)
		}
		p, err := DecodeServer(f)
		if err != nil {
			t.Fatalf("decode %q: %v", sample, err)
		}
		if p.ServerCommand() != f.Command {
			t.Fatalf("payload for %q reports command %q", f.Command, p.ServerCommand())
		}
	}
}

func TestDecodeServer_MessageFields(t *testing.T) {
	f, _ := ParseFrame([]byte(`MSG {"channel":"Development","character":"Alice","message":"hi"}`))
	p, err := DecodeServer(f)
	if err != nil {
		t.Fatalf("expected decode success, got %v", err)
	}
	msg, ok := p.(*Message)
	if !ok {
		t.Fatalf("expected *Message, got %T", p)
	}
	if msg.Channel != "Development" || msg.Character != "Alice" || msg.Message != "hi" {
		t.Fatalf("unexpected fields %+v", msg)
	}
}

func TestDecodeServer_RosterTuples(t *testing.T) {
	f, _ := ParseFrame([]byte(`LIS {"characters":[["Alice","Female","online",""],["Bob","Male","busy","writing"]]}`))
	p, err := DecodeServer(f)
	if err != nil {
		t.Fatalf("expected decode success, got %v", err)
	}
	roster := p.(*Roster)
	if len(roster.Characters) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(roster.Characters))
	}
	first := roster.Characters[0]
	if first.Name() != "Alice" || first.Gender() != "Female" || first.Status() != "online" || first.StatusMsg() != "" {
		t.Fatalf("unexpected entry %v", first)
	}
	second := roster.Characters[1]
	if second.StatusMsg() != "writing" {
		t.Fatalf("unexpected status message %q", second.StatusMsg())
	}
}

func TestVariable_ValueInterpretations(t *testing.T) {
	f, _ := ParseFrame([]byte(`VAR {"variable":"msg_flood","value":0.5}`))
	p, _ := DecodeServer(f)
	if got, err := p.(*Variable).Float(); err != nil || got != 0.5 {
		t.Fatalf("expected 0.5, got %v (%v)", got, err)
	}

	f, _ = ParseFrame([]byte(`VAR {"variable":"icon_blacklist","value":["Frontpage"]}`))
	p, _ = DecodeServer(f)
	list, err := p.(*Variable).StringList()
	if err != nil || len(list) != 1 || list[0] != "Frontpage" {
		t.Fatalf("expected [Frontpage], got %v (%v)", list, err)
	}

	// A numeric value must not silently coerce into a list.
	f, _ = ParseFrame([]byte(`VAR {"variable":"chat_max","value":4096}`))
	p, _ = DecodeServer(f)
	if _, err := p.(*Variable).StringList(); err == nil {
		t.Fatalf("expected type error interpreting number as list")
	}
}

func TestDecodeServer_UnknownCommand(t *testing.T) {
	f, _ := ParseFrame([]byte(`ZZZ {"anything":"goes"}`))
	_, err := DecodeServer(f)

	var unknown *UnknownCommandError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownCommandError, got %v", err)
	}
	if unknown.Command != "ZZZ" {
		t.Fatalf("expected command ZZZ, got %q", unknown.Command)
	}
}

func TestDecodeServer_MalformedPayload(t *testing.T) {
	f, _ := ParseFrame([]byte(`MSG {"channel":123}`))
	_, err := DecodeServer(f)

	var malformed *MalformedFrameError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedFrameError, got %v", err)
	}
	if malformed.Command != "MSG" {
		t.Fatalf("expected command MSG, got %q", malformed.Command)
	}
}

func TestEncodeClient_GoldenFrames(t *testing.T) {
	cases := []struct {
		payload ClientPayload
		want    string
	}{
		{
			Identify{Method: "ticket", Account: "user@example.com", Ticket: "fct_0123", Character: "Alice", CName: "snowchat", CVersion: "0.1.0"},
			`IDN {"method":"ticket","account":"user@example.com","ticket":"fct_0123","character":"Alice","cname":"snowchat","cversion":"0.1.0"}`,
		},
		{
			SendMessage{Channel: "Development", Message: "hi"},
			`MSG {"channel":"Development","message":"hi"}`,
		},
		{
			SendAd{Channel: "Development", Message: "looking for rp"},
			`LRP {"channel":"Development","message":"looking for rp"}`,
		},
		{
			SendPrivate{Recipient: "Bob", Message: "hello"},
			`PRI {"recipient":"Bob","message":"hello"}`,
		},
		{
			JoinChannel{Channel: "Development"},
			`JCH {"channel":"Development"}`,
		},
		{
			SetStatus{Status: StatusLooking, StatusMsg: "open to scenes"},
			`STA {"status":"looking","statusmsg":"open to scenes"}`,
		},
		{
			SetTyping{Character: "Bob", Status: TypingTyping},
			`TPN {"character":"Bob","status":"typing"}`,
		},
		{
			IgnoreAction{Action: "add", Character: "Troll"},
			`IGN {"action":"add","character":"Troll"}`,
		},
		{
			IgnoreAction{Action: "list"},
			`IGN {"action":"list"}`,
		},
		{
			TimeoutCharacter{Channel: "Development", Character: "Bob", Length: 30},
			`CTU {"channel":"Development","character":"Bob","length":"30"}`,
		},
		{
			RollDice{Channel: "Development", Dice: "1d20"},
			`RLL {"channel":"Development","dice":"1d20"}`,
		},
		{
			RollDice{Recipient: "Bob", Dice: "bottle"},
			`RLL {"recipient":"Bob","dice":"bottle"}`,
		},
	}

	for _, tc := range cases {
		out, err := EncodeClient(tc.payload)
		if err != nil {
			t.Fatalf("encode %T: %v", tc.payload, err)
		}
		if string(out) != tc.want {
			t.Fatalf("unexpected frame for %T:\nwant %s\n got %s", tc.payload, tc.want, out)
		}
	}
}

func TestEncodeClient_BareTokens(t *testing.T) {
	cases := []struct {
		payload ClientPayload
		want    string
	}{
		{Ping{}, "PIN"},
		{RequestChannels{}, "CHA"},
		{RequestRooms{}, "ORS"},
		{RequestUptime{}, "UPT"},
	}

	for _, tc := range cases {
		out, err := EncodeClient(tc.payload)
		if err != nil {
			t.Fatalf("encode %T: %v", tc.payload, err)
		}
		if string(out) != tc.want {
			t.Fatalf("expected bare token %q, got %q", tc.want, out)
		}
	}
}

func TestFrameEncode_RejectsOversize(t *testing.T) {
	f := Frame{Command: "MSG", Payload: []byte(`{"message":"` + strings.Repeat("a", MaxFrameBytes) + `"}`)}
	if _, err := f.Encode(); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}
