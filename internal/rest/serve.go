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


// Package rest serves the alignment pipeline over HTTP. Log lines are
// streamed into the response body as the frames are processed.
package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/mlnoga/burstalign/internal/ops"
	"github.com/mlnoga/burstalign/internal/ops/post"
	"github.com/mlnoga/burstalign/internal/ops/ref"
	"github.com/mlnoga/burstalign/web"
)

// Creates the router with all API routes
func NewRouter() *gin.Engine {
	r := gin.Default()
	r.GET("/", getIndex)
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/stats", postStats)
			v1.POST("/align", postAlign)
		}
	}
	return r
}

// Listens and serves on the given address, e.g. ":8080"
func Serve(addr string) error {
	return NewRouter().Run(addr)
}

func getIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", web.IndexHTML)
}

func getPing(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "pong",
	})
}

// Streams writes from concurrent operators into the response, flushing after each
type streamWriter struct {
	mutex sync.Mutex
	w     gin.ResponseWriter
}

func (sw *streamWriter) Write(p []byte) (int, error) {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()
	n, err := sw.w.Write(p)
	sw.w.Flush()
	return n, err
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

// Starts a streamed plain text response and returns an operator context logging into it
func startStream(c *gin.Context, args interface{}) (*ops.Context, bool) {
	header := c.Writer.Header()
	header.Set("Content-Type", "text/plain")
	c.Writer.WriteHeader(http.StatusOK)

	logWriter := &streamWriter{w: c.Writer}
	if err := printArgs(logWriter, "Arguments:\n", "\n", args); err != nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return nil, false
	}
	ctx := ops.NewContext(logWriter)
	ctx.Ctx = c.Request.Context() // stop work when the client goes away
	return ctx, true
}

type postStatsArgs struct {
	FilePatterns []string           `json:"filePatterns" binding:"required"`
	ExportStats  *ref.OpExportStats `json:"exportStats"`
}

func postStats(c *gin.Context) {
	var args postStatsArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if args.ExportStats == nil {
		args.ExportStats = ref.NewOpExportStatsDefault()
	}

	ctx, ok := startStream(c, args)
	if !ok {
		return
	}
	op := ops.NewOpSequence(ops.NewOpLoadMany(args.FilePatterns), args.ExportStats)
	if _, err := post.Run(op, ctx); err != nil {
		fmt.Fprintf(ctx.Log, "error: %s\n", err.Error())
	}
}

type postAlignArgs struct {
	FilePatterns []string               `json:"filePatterns" binding:"required"`
	SelectRef    *ref.OpSelectReference `json:"selectRef"`
	Align        *post.OpAlign          `json:"align"`
	Filter       *ref.OpFilter          `json:"filter"`
	ExportStats  *ref.OpExportStats     `json:"exportStats"`
	Save         *ops.OpSave            `json:"save"`
}

// Fills in defaults for operators missing from the request
func (args *postAlignArgs) defaults() {
	if args.SelectRef == nil {
		args.SelectRef = ref.NewOpSelectReferenceDefault()
	}
	if args.Align == nil {
		args.Align = post.NewOpAlignDefault()
	}
	if args.Filter == nil {
		args.Filter = ref.NewOpFilterDefault()
	}
	if args.ExportStats == nil {
		args.ExportStats = ref.NewOpExportStatsDefault()
	}
	if args.Save == nil {
		args.Save = ops.NewOpSaveDefault()
	}
}

func postAlign(c *gin.Context) {
	var args postAlignArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	args.defaults()

	ctx, ok := startStream(c, args)
	if !ok {
		return
	}
	op := post.NewOpBurst(ops.NewOpLoadMany(args.FilePatterns), args.SelectRef, args.Align,
		args.Filter, args.ExportStats, args.Save)
	n, err := post.Run(op, ctx)
	if err != nil {
		fmt.Fprintf(ctx.Log, "error: %s\n", err.Error())
		return
	}
	fmt.Fprintf(ctx.Log, "Aligned %d frames.\n", n)
}
