// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mlnoga/insarseed/internal/ops"
	"github.com/mlnoga/insarseed/internal/ops/ref"
)

// Creates the HTTP API router
func NewRouter() *gin.Engine {
	r := gin.Default()
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/seed", postSeed)
			v1.POST("/reset", postReset)
			v1.POST("/refdate", postRefDate)
		}
	}
	return r
}

// Serves the HTTP API on the given address, e.g. ":8080"
func Serve(addr string) error {
	return NewRouter().Run(addr)
}

func getPing(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "pong",
	})
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

// Rejects absolute paths and parent directory references in any of the given names
func checkPaths(names ...string) error {
	for _, n := range names {
		if n != "" && !ops.IsPathAllowed(n) {
			return fmt.Errorf("path %s outside current directory tree", n)
		}
	}
	return nil
}

type postSeedArgs struct {
	FilePatterns []string    `json:"filePatterns"`
	Parallel     bool        `json:"parallel"`
	Seed         *ref.OpSeed `json:"seed"`
}

func postSeed(c *gin.Context) {
	var args postSeedArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if args.Seed == nil {
		args.Seed = ref.NewOpSeedDefault()
	}
	if args.Seed.IsInteractive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("strategy %s needs an interactive picker", args.Seed.Strategy)})
		return
	}
	s := args.Seed
	if err := checkPaths(append([]string{s.MaskFile, s.CoherenceFile, s.LookupFile, s.ReferenceFile, s.Out, s.Prefix}, args.FilePatterns...)...); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	runBatch(c, args, ops.NewOpBatch(ops.NewOpLoadMany(args.FilePatterns), s, args.Parallel))
}

type postResetArgs struct {
	FilePatterns []string `json:"filePatterns"`
}

func postReset(c *gin.Context) {
	var args postResetArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := checkPaths(args.FilePatterns...); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	runBatch(c, args, ops.NewOpBatch(ops.NewOpLoadMany(args.FilePatterns), ref.NewOpReset(), false))
}

type postRefDateArgs struct {
	FilePatterns []string `json:"filePatterns"`
	RefDate      string   `json:"refDate"`
	Out          string   `json:"out"`
	Parallel     bool     `json:"parallel"`
}

func postRefDate(c *gin.Context) {
	var args postRefDateArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if args.RefDate == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing refDate"})
		return
	}
	if err := checkPaths(append([]string{args.Out}, args.FilePatterns...)...); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	op := ref.NewOpRefDate(args.RefDate)
	op.Out = args.Out
	runBatch(c, args, ops.NewOpBatch(ops.NewOpLoadMany(args.FilePatterns), op, args.Parallel))
}

// Runs a batch, streaming its log into the response
func runBatch(c *gin.Context, args interface{}, batch *ops.OpBatch) {
	logWriter := c.Writer
	header := logWriter.Header()
	header.Set("Content-Type", "text/plain")
	logWriter.WriteHeader(http.StatusOK)

	if err := printArgs(logWriter, "Arguments:\n", "\n", args); err != nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	ctx := ops.NewContext(logWriter)
	ctx.RestrictPaths = true
	outs, err := batch.Run(c.Request.Context(), ctx)
	if err != nil {
		fmt.Fprintf(ctx.Log, "error: %s\n", err.Error())
	} else if err := ops.JoinErrors(outs); err != nil {
		fmt.Fprintf(ctx.Log, "error: %s\n", err.Error())
	}
	logWriter.Flush()
}
