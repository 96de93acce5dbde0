package at

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/handsfree/pkg/handsfree"
)

func TestScanLines(t *testing.T) {
	input := "\r\nOK\r\n\r\n+CIEV: 2,1\r\nRING\n\r+CLIP: \"+100\",145"
	sc := bufio.NewScanner(strings.NewReader(input))
	sc.Split(ScanLines)

	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, []string{"OK", "+CIEV: 2,1", "RING", "+CLIP: \"+100\",145"}, lines)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		line string
		want Kind
	}{
		{"OK", KindFinal},
		{"ERROR", KindFinal},
		{"NO CARRIER", KindFinal},
		{"BLACKLISTED", KindFinal},
		{"+CME ERROR: 30", KindFinal},
		{"RING", KindUnsolicited},
		{"+CIEV: 1,0", KindUnsolicited},
		{"+VGS=9", KindUnsolicited},
		{"+BCS: 2", KindUnsolicited},
		{"+CLCC: 1,0,0,0,0", KindInfo},
		{"+CIND: 1,0,0", KindInfo},
		{"+COPS: 0,0,\"Beeline\"", KindInfo},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.line))
		})
	}
}

func TestParseFinal(t *testing.T) {
	r, err := Parse("BUSY")
	require.NoError(t, err)
	assert.Equal(t, KindFinal, r.Kind)
	assert.Equal(t, handsfree.ResultBusy, r.Code)

	r, err = Parse("+CME ERROR: 30")
	require.NoError(t, err)
	assert.Equal(t, handsfree.ResultCME, r.Code)
	assert.Equal(t, 30, r.CmeError)

	_, err = Parse("+CME ERROR: x")
	assert.Error(t, err)

	_, err = Parse("  ")
	assert.ErrorIs(t, err, ErrEmptyLine)
}

func TestSplitArgs(t *testing.T) {
	assert.Equal(t, []string{`"a,b"`, "(0,1)", "", "7"}, SplitArgs(` "a,b", (0,1), ,7`))
	assert.Nil(t, SplitArgs("  "))
}

func TestParseIndicators(t *testing.T) {
	r, err := Parse(`+CIND: ("service",(0,1)),("call",(0,1)),("callsetup",(0-3)),("callheld",(0-2)),("signal",(0-5)),("roam",(0,1)),("battchg",(0-5))`)
	require.NoError(t, err)
	names, err := CINDNames(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"service", "call", "callsetup", "callheld", "signal", "roam", "battchg"}, names)

	r, err = Parse("+CIND: 1,0,1,0,4,0,5")
	require.NoError(t, err)
	values, err := CINDValues(r)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 1, 0, 4, 0, 5}, values)

	r, err = Parse("+CIEV: 3,2")
	require.NoError(t, err)
	idx, val, err := CIEV(r)
	require.NoError(t, err)
	assert.Equal(t, 3, idx)
	assert.Equal(t, 2, val)

	_, _, err = CIEV(Result{Name: "+CIEV", Args: []string{"1"}})
	assert.Error(t, err)
	_, err = CINDValues(r)
	assert.Error(t, err, "чужой префикс")
}

func TestParseFeatures(t *testing.T) {
	r, _ := Parse("+BRSF: 871")
	peer, err := BRSF(r)
	require.NoError(t, err)
	assert.True(t, peer.Has(handsfree.PeerFeature3Way))
	assert.True(t, peer.Has(handsfree.PeerFeatureECS))
	assert.True(t, peer.Has(handsfree.PeerFeatureCodecNegot))

	r, _ = Parse("+CHLD: (0,1,1x,2,2x,3,4)")
	chld, err := CHLD(r)
	require.NoError(t, err)
	assert.Equal(t, handsfree.ChldRelease|handsfree.ChldReleaseAccept|handsfree.ChldReleaseSpecific|
		handsfree.ChldHoldAccept|handsfree.ChldPrivateMode|handsfree.ChldMerge|handsfree.ChldMergeDetach, chld)

	r, _ = Parse("+CHLD: 0,1,2,3")
	chld, err = CHLD(r)
	require.NoError(t, err)
	assert.Equal(t, handsfree.ChldRelease|handsfree.ChldReleaseAccept|handsfree.ChldHoldAccept|handsfree.ChldMerge, chld)
}

func TestParseCLCC(t *testing.T) {
	tests := []struct {
		name string
		line string
		want handsfree.CurrentCallEvent
	}{
		{"входящий", `+CLCC: 1,1,4,0,0,"+15551234",145`,
			handsfree.CurrentCallEvent{Index: 1, State: handsfree.CallIncoming, Number: "+15551234"}},
		{"исходящий в конференции", `+CLCC: 2,0,0,0,1,"100",129`,
			handsfree.CurrentCallEvent{Index: 2, Outgoing: true, State: handsfree.CallActive, MultiParty: true, Number: "100"}},
		{"без номера", `+CLCC: 3,1,6,0,0`,
			handsfree.CurrentCallEvent{Index: 3, State: handsfree.CallHeldByResponseAndHold}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse(tt.line)
			require.NoError(t, err)
			got, err := CLCC(r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	r, _ := Parse("+CLCC: 1,1,9,0,0")
	_, err := CLCC(r)
	assert.Error(t, err)
}

func TestParseInfo(t *testing.T) {
	r, _ := Parse(`+COPS: 0,0,"MTS RUS"`)
	name, err := COPS(r)
	require.NoError(t, err)
	assert.Equal(t, "MTS RUS", name)

	r, _ = Parse(`+CNUM: ,"+79001234567",145,,4`)
	number, service, err := CNUM(r)
	require.NoError(t, err)
	assert.Equal(t, "+79001234567", number)
	assert.Equal(t, 4, service)

	r, _ = Parse(`+CLIP: "+100",145,,,"Alice"`)
	number, err = CLIP(r)
	require.NoError(t, err)
	assert.Equal(t, "+100", number)

	r, _ = Parse(`+BINP: "+200"`)
	number, err = BINP(r)
	require.NoError(t, err)
	assert.Equal(t, "+200", number)

	r, _ = Parse("+VGM=12")
	level, err := Value(r)
	require.NoError(t, err)
	assert.Equal(t, 12, level)

	_, err = Value(Result{Name: "+CLIP"})
	assert.Error(t, err)
}

func TestCommands(t *testing.T) {
	tests := []struct {
		cmd   handsfree.CallCommand
		index int
		want  string
	}{
		{handsfree.CommandATA, 0, "ATA"},
		{handsfree.CommandCHUP, 0, "AT+CHUP"},
		{handsfree.CommandCHLD0, 0, "AT+CHLD=0"},
		{handsfree.CommandCHLD4, 0, "AT+CHLD=4"},
		{handsfree.CommandCHLD1x, 3, "AT+CHLD=13"},
		{handsfree.CommandCHLD2x, 2, "AT+CHLD=22"},
		{handsfree.CommandBTRH0, 0, "AT+BTRH=0"},
		{handsfree.CommandBTRH2, 0, "AT+BTRH=2"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := CallAction(tt.cmd, tt.index)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := CallAction(handsfree.CommandCHLD1x, 0)
	assert.Error(t, err)

	assert.Equal(t, "ATD+100;", Dial("+100"))
	assert.Equal(t, "ATD>7;", DialMemory(7))
	assert.Equal(t, "AT+VTS=#", VTS('#'))
	assert.Equal(t, "AT+VGM=3", Volume(handsfree.VolumeMic, 3))
	assert.Equal(t, "AT+VGS=9", Volume(handsfree.VolumeSpeaker, 9))
	assert.Equal(t, "AT+BVRA=1", BVRA(true))
	assert.Equal(t, "AT+BRSF=127", SupportedFeatures(127))
}

func TestCharset(t *testing.T) {
	cs, err := ParseCharset("ucs-2")
	require.NoError(t, err)
	assert.Equal(t, CharsetUCS2, cs)

	// "Мама" в UCS2
	decoded, err := cs.Decode("041C0430043C0430")
	require.NoError(t, err)
	assert.Equal(t, "Мама", decoded)

	plain, err := cs.Decode("+79001234567")
	require.NoError(t, err)
	assert.Equal(t, "+79001234567", plain)

	same, err := CharsetUTF8.Decode("041C0430")
	require.NoError(t, err)
	assert.Equal(t, "041C0430", same)

	_, err = ParseCharset("KOI8-R")
	assert.Error(t, err)
}
