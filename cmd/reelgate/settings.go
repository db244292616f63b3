package main

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/reelgate/internal/infra"
	"github.com/eliteGoblin/focusd/reelgate/internal/schedule"
	"github.com/eliteGoblin/focusd/reelgate/internal/usecase"
)

var passwordFlag string

func addSettingsCommands(root *cobra.Command) {
	enableCmd := &cobra.Command{
		Use:   "enable",
		Short: "Turn blocking on",
		RunE:  runEnable,
	}
	disableCmd := &cobra.Command{
		Use:   "disable",
		Short: "Turn blocking off (asks for the override password when one is set)",
		RunE:  runDisable,
	}

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage the daily 10-minute viewing window",
	}
	scheduleCmd.AddCommand(
		&cobra.Command{
			Use:   "set HH:MM",
			Short: "Allow viewing for 10 minutes starting at HH:MM each day",
			Args:  cobra.ExactArgs(1),
			RunE:  runScheduleSet,
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove the viewing window (blocked all day)",
			RunE:  runScheduleClear,
		},
		&cobra.Command{
			Use:   "show",
			Short: "Show the viewing window",
			RunE:  runScheduleShow,
		},
	)

	passwordCmd := &cobra.Command{
		Use:   "password",
		Short: "Manage the override password",
	}
	passwordCmd.AddCommand(
		&cobra.Command{
			Use:   "set",
			Short: "Set the override password (only when none is set)",
			RunE:  runPasswordSet,
		},
		&cobra.Command{
			Use:   "change",
			Short: "Change the override password",
			RunE:  runPasswordChange,
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Remove the override password (asks for the current one)",
			RunE:  runPasswordReset,
		},
	)

	unlockCmd := &cobra.Command{
		Use:   "unlock",
		Short: "Enter the override password to dismiss the overlay and suspend blocking",
		RunE:  runUnlock,
	}

	for _, c := range []*cobra.Command{disableCmd, unlockCmd} {
		c.Flags().StringVar(&passwordFlag, "password", "", "Override password (read from stdin when omitted)")
	}

	root.AddCommand(enableCmd, disableCmd, scheduleCmd, passwordCmd, unlockCmd)
}

// withStore opens the encrypted store for a one-shot command.
func withStore(fn func(store *infra.EncryptedStore) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := infra.OpenStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// readLine prompts on stderr and reads one line from the command's stdin.
func readLine(cmd *cobra.Command, reader *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runEnable(cmd *cobra.Command, args []string) error {
	return withStore(func(store *infra.EncryptedStore) error {
		if err := store.SetBlockingEnabled(true); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Blocking enabled.")
		return nil
	})
}

func runDisable(cmd *cobra.Command, args []string) error {
	return withStore(func(store *infra.EncryptedStore) error {
		set, err := infra.NewPasswordManager(store).IsSet()
		if err != nil {
			return err
		}
		if set {
			return unlock(cmd, store)
		}
		if err := store.SetBlockingEnabled(false); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Blocking disabled.")
		return nil
	})
}

func runUnlock(cmd *cobra.Command, args []string) error {
	return withStore(func(store *infra.EncryptedStore) error {
		set, err := infra.NewPasswordManager(store).IsSet()
		if err != nil {
			return err
		}
		if !set {
			return fmt.Errorf("%w: run 'reelgate password set' first", infra.ErrPasswordNotSet)
		}
		return unlock(cmd, store)
	})
}

// unlock verifies the password and dismisses the running overlay.
func unlock(cmd *cobra.Command, store *infra.EncryptedStore) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	password := passwordFlag
	if password == "" {
		password, err = readLine(cmd, bufio.NewReader(cmd.InOrStdin()), "Password: ")
		if err != nil {
			return err
		}
	}

	overlay := infra.NewCommandOverlay(
		infra.OverlayConfig{
			Command:     cfg.Overlay.Command,
			Args:        cfg.Overlay.Args,
			ProcessName: cfg.Overlay.ProcessName,
		},
		infra.NewProcessManager(), nil, logger,
	)
	unlocker := usecase.NewUnlocker(infra.NewPasswordManager(store), store, overlay, usecase.SystemClock{}, logger)

	err = unlocker.Unlock(password)
	if errors.Is(err, usecase.ErrWrongPassword) {
		// Each process gets one attempt; the lockout slows scripted guessing.
		time.Sleep(usecase.DefaultLockout)
		return err
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Unlocked. Blocking is off until 'reelgate enable'.")
	return nil
}

// parseClock parses HH:MM.
func parseClock(s string) (int, int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid hour %q", parts[0])
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid minute %q", parts[1])
	}
	if err := schedule.ValidateAnchor(hour, minute); err != nil {
		return 0, 0, err
	}
	return hour, minute, nil
}

func runScheduleSet(cmd *cobra.Command, args []string) error {
	hour, minute, err := parseClock(args[0])
	if err != nil {
		return err
	}
	return withStore(func(store *infra.EncryptedStore) error {
		if err := store.SetSchedule(hour, minute); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Viewing allowed daily %02d:%02d for %d minutes.\n",
			hour, minute, schedule.AllowedDuration)
		return nil
	})
}

func runScheduleClear(cmd *cobra.Command, args []string) error {
	return withStore(func(store *infra.EncryptedStore) error {
		if err := store.ClearSchedule(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Viewing window removed.")
		return nil
	})
}

func runScheduleShow(cmd *cobra.Command, args []string) error {
	return withStore(func(store *infra.EncryptedStore) error {
		anchor, err := store.ScheduleAnchor()
		if err != nil {
			return err
		}
		printSchedule(cmd.OutOrStdout(), schedule.NewGate(), anchor, time.Now())
		return nil
	})
}

func runPasswordSet(cmd *cobra.Command, args []string) error {
	return withStore(func(store *infra.EncryptedStore) error {
		pm := infra.NewPasswordManager(store)
		set, err := pm.IsSet()
		if err != nil {
			return err
		}
		if set {
			return errors.New("password already set, use 'reelgate password change'")
		}

		reader := bufio.NewReader(cmd.InOrStdin())
		password, err := readConfirmed(cmd, reader, "New password: ")
		if err != nil {
			return err
		}
		if err := pm.SetPassword(password); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Password set.")
		return nil
	})
}

func runPasswordChange(cmd *cobra.Command, args []string) error {
	return withStore(func(store *infra.EncryptedStore) error {
		reader := bufio.NewReader(cmd.InOrStdin())
		current, err := readLine(cmd, reader, "Current password: ")
		if err != nil {
			return err
		}
		next, err := readConfirmed(cmd, reader, "New password: ")
		if err != nil {
			return err
		}
		if err := infra.NewPasswordManager(store).ChangePassword(current, next); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Password changed.")
		return nil
	})
}

func runPasswordReset(cmd *cobra.Command, args []string) error {
	return withStore(func(store *infra.EncryptedStore) error {
		current, err := readLine(cmd, bufio.NewReader(cmd.InOrStdin()), "Current password: ")
		if err != nil {
			return err
		}
		err = infra.NewPasswordManager(store).ResetPassword(current)
		if errors.Is(err, infra.ErrPasswordWrong) {
			time.Sleep(usecase.DefaultLockout)
			return err
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Password removed. 'reelgate disable' no longer asks for one.")
		return nil
	})
}

func readConfirmed(cmd *cobra.Command, reader *bufio.Reader, prompt string) (string, error) {
	first, err := readLine(cmd, reader, prompt)
	if err != nil {
		return "", err
	}
	second, err := readLine(cmd, reader, "Confirm: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	return first, nil
}
