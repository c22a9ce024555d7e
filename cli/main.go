/*
 * Copyright (C) 2025 Simone Pezzano
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envFile = ".env"

func main() {
	if err := godotenv.Load(envFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeEnvTemplate()
		} else {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	var err error
	if cfg, err = loadConfig(viper.GetViper()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// writeEnvTemplate writes a .env file listing every supported key
func writeEnvTemplate() {
	data, err := configDefaults()
	if err != nil {
		return
	}
	for k, val := range data {
		if val == nil {
			data[k] = ""
		}
	}
	v := viper.New()
	_ = v.MergeConfigMap(data)
	v.SetConfigType("env")
	if err := v.WriteConfigAs(envFile); err == nil {
		fmt.Fprintln(os.Stderr, "a .env file was created with the default settings, fill it out to configure the agent.")
	}
}
