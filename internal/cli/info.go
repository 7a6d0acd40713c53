// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenPSG/epochs"
	"github.com/OpenPSG/epochs/edf"
)

func NewInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <raw.edf>",
		Short: "Show the channels of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := edf.OpenFile(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			info, err := f.Info()
			if err != nil {
				return err
			}
			nsamp, err := f.NumSamples()
			if err != nil {
				return err
			}
			grade, err := epochs.CurrentGrade(info)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Sampling rate: %g Hz\n", info.SamplingRate)
			fmt.Fprintf(out, "Samples:       %d\n", nsamp)
			fmt.Fprintf(out, "Compensation:  grade %d\n", grade)
			fmt.Fprintf(out, "Channels:      %d\n\n", info.NumChannels())
			for i, ch := range info.Channels {
				fmt.Fprintf(out, "%4d  %-16s %s\n", i, ch.Name, ch.Kind)
			}
			return nil
		},
	}
}
