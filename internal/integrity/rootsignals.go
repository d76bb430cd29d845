package integrity

import "strings"

// Signal types produced by the adapters.
const (
	SignalRoot       = "root"
	SignalJailbreak  = "jailbreak"
	SignalEmulator   = "emulator"
	SignalDebugger   = "debugger"
	SignalHooks      = "hooks"
	SignalBootloader = "bootloader_unlocked"
	SignalSELinux    = "selinux_permissive"
)

// RootSignalAdapter derives root/tamper signals from one evidence source.
// Adapters run in isolation; an adapter error or panic drops only that
// adapter's contribution.
type RootSignalAdapter interface {
	Name() string
	Signals(result *VerificationResult, raw *RawSignals) ([]RootSignal, error)
}

// VerdictAdapter derives signals from the provider's normalized verdict:
// explicit root/jailbreak flags plus recognizable risk signal names.
type VerdictAdapter struct{}

func (VerdictAdapter) Name() string { return "verdict" }

func (VerdictAdapter) Signals(result *VerificationResult, _ *RawSignals) ([]RootSignal, error) {
	if result == nil {
		return nil, nil
	}

	var signals []RootSignal
	if result.RootDetected {
		signals = append(signals, RootSignal{Type: SignalRoot, Source: "verdict"})
	}
	if result.JailbreakDetect {
		signals = append(signals, RootSignal{Type: SignalJailbreak, Source: "verdict"})
	}
	for _, risk := range result.RiskSignals {
		lower := strings.ToLower(risk)
		switch {
		case strings.Contains(lower, "emulator"):
			signals = append(signals, RootSignal{Type: SignalEmulator, Source: "verdict", Detail: risk})
		case strings.Contains(lower, "root"):
			signals = append(signals, RootSignal{Type: SignalRoot, Source: "verdict", Detail: risk})
		case strings.Contains(lower, "jailbr"):
			signals = append(signals, RootSignal{Type: SignalJailbreak, Source: "verdict", Detail: risk})
		}
	}
	return signals, nil
}

// RawSignalAdapter derives signals from the client's self-reported device
// state flags.
type RawSignalAdapter struct{}

func (RawSignalAdapter) Name() string { return "raw" }

func (RawSignalAdapter) Signals(_ *VerificationResult, raw *RawSignals) ([]RootSignal, error) {
	if raw == nil {
		return nil, nil
	}

	var signals []RootSignal
	if raw.SELinuxPermissive {
		signals = append(signals, RootSignal{Type: SignalSELinux, Source: "raw"})
	}
	if raw.DebuggerAttached {
		signals = append(signals, RootSignal{Type: SignalDebugger, Source: "raw"})
	}
	if raw.HooksDetected {
		signals = append(signals, RootSignal{Type: SignalHooks, Source: "raw"})
	}
	if raw.EmulatorDetected {
		signals = append(signals, RootSignal{Type: SignalEmulator, Source: "raw"})
	}
	if raw.BootloaderUnlocked {
		signals = append(signals, RootSignal{Type: SignalBootloader, Source: "raw"})
	}
	return signals, nil
}
