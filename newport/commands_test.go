package newport

import (
	"strings"
	"testing"

	"github.com/sdlab/labdev/command"
	"github.com/sdlab/labdev/device"
)

func TestCommandsThroughInvoker(t *testing.T) {
	esp, mock, _ := newTestESP(t)
	inv := command.NewInvoker(10, esp.logger)

	if res := inv.Run(StartupCmd(esp)); !res.OK {
		t.Fatal(res)
	}
	if res := inv.Run(MoveAbsoluteCmd(esp, 1, 5)); !res.OK {
		t.Fatal(res)
	}
	res := inv.Run(MoveSpeedAbsoluteCmd(esp, 1, -3, 500))
	if res.Kind != device.InvalidSpeed {
		t.Errorf("expected %s got %s", device.InvalidSpeed, res)
	}
	if res = inv.Run(PositionCmd(esp, 1)); res.Value != 5 {
		t.Errorf("expected position 5 got %v", res.Value)
	}
	h := inv.History()
	if len(h) != 4 {
		t.Fatalf("expected 4 records got %d", len(h))
	}
	if h[1].Name != "esp301.move_absolute(1, 5)" {
		t.Errorf("unexpected command name %q", h[1].Name)
	}
	if mock.AxisPosition(1) != 5 {
		t.Errorf("expected the simulator at 5")
	}
}

func TestStartupStopsWhenInitializeFails(t *testing.T) {
	esp, mock, _ := newTestESP(t)
	mock.Silence("TB", true)
	res := StartupCmd(esp).Execute()
	if res.OK {
		t.Fatal("expected failure")
	}
	if !strings.HasPrefix(res.Message, "esp301.initialize: ") {
		t.Errorf("expected the failing step in the message, got %q", res.Message)
	}
}

func TestTelegram(t *testing.T) {
	tests := []struct {
		cmd  JSONCommand
		want string
	}{
		{JSONCommand{Axis: 1, Cmd: "move-abs", F64: 5, Write: true}, "1PA5"},
		{JSONCommand{Axis: 2, Cmd: "PR", F64: -0.25, Write: true}, "2PR-0.25"},
		{JSONCommand{Axis: 3, Cmd: "set-velocity"}, "3VA?"},
		{JSONCommand{Cmd: "err-msg", Write: true}, "TB?"},
	}
	for _, tt := range tests {
		got, err := tt.cmd.Telegram()
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("expected %s got %s", tt.want, got)
		}
	}
	joined, err := Telegrams([]JSONCommand{tests[0].cmd, tests[2].cmd})
	if err != nil || joined != "1PA5;3VA?" {
		t.Errorf("expected 1PA5;3VA? got %s, %v", joined, err)
	}
	if _, err := (JSONCommand{Cmd: "warp"}).Telegram(); err == nil {
		t.Error("expected an error for an unknown command")
	}
	if _, err := (JSONCommand{Cmd: "move-abs", Write: true}).Telegram(); err == nil {
		t.Error("expected an error for a missing axis")
	}
}
