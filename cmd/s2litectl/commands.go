// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

type basinDTO struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

type streamDTO struct {
	Name string `json:"name"`
}

type recordDTO struct {
	Body      []byte `json:"body"`
	SeqNum    uint64 `json:"seq_num,omitempty"`
	Timestamp uint64 `json:"timestamp,omitempty"`
}

type appendRequestDTO struct {
	Records      []recordDTO `json:"records"`
	MatchSeqNum  *uint64     `json:"match_seq_num,omitempty"`
	FencingToken *string     `json:"fencing_token,omitempty"`
}

type appendResponseDTO struct {
	StartSeqNum    uint64 `json:"start_seq_num"`
	EndSeqNum      uint64 `json:"end_seq_num"`
	StartTimestamp uint64 `json:"start_timestamp"`
	EndTimestamp   uint64 `json:"end_timestamp"`
}

func commonFlags(fs *flag.FlagSet) (addr, token *string) {
	addr = fs.String("addr", "", "s2lited base URL (default: config \"addr\" or http://127.0.0.1:2600)")
	token = fs.String("token", "", "bearer token (default: config \"token\")")
	return
}

func runCreateBasin(args []string) error {
	fs := flag.NewFlagSet("create-basin", flag.ExitOnError)
	addr, token := commonFlags(fs)
	fs.Parse(args)
	uri, err := parseResourceURI(fs.Arg(0))
	if err != nil {
		return err
	}
	c := newAPIClient(defaultAddr(*addr), defaultToken(*token))
	resp, err := c.do("POST", "/v1/basins", "", nil, map[string]string{"basin": uri.Basin})
	if err != nil {
		return err
	}
	var out basinDTO
	if err := decodeOrError(resp, &out); err != nil {
		return err
	}
	fmt.Printf("created basin %q (%s)\n", out.Name, out.State)
	return nil
}

func runListBasins(args []string) error {
	fs := flag.NewFlagSet("list-basins", flag.ExitOnError)
	addr, token := commonFlags(fs)
	prefix := fs.String("prefix", "", "only list basins with this name prefix")
	startAfter := fs.String("start-after", "", "resume listing strictly after this basin name")
	limit := fs.Int("limit", 0, "max basins to return (0 = server default)")
	fs.Parse(args)

	c := newAPIClient(defaultAddr(*addr), defaultToken(*token))
	q := url.Values{}
	if *prefix != "" {
		q.Set("prefix", *prefix)
	}
	if *startAfter != "" {
		q.Set("start_after", *startAfter)
	}
	if *limit > 0 {
		q.Set("limit", strconv.Itoa(*limit))
	}
	resp, err := c.do("GET", "/v1/basins", "", q, nil)
	if err != nil {
		return err
	}
	var out struct {
		Basins []basinDTO `json:"basins"`
	}
	if err := decodeOrError(resp, &out); err != nil {
		return err
	}
	for _, b := range out.Basins {
		fmt.Printf("%s\t%s\n", b.Name, b.State)
	}
	return nil
}

func runDeleteBasin(args []string) error {
	fs := flag.NewFlagSet("delete-basin", flag.ExitOnError)
	addr, token := commonFlags(fs)
	fs.Parse(args)
	uri, err := parseResourceURI(fs.Arg(0))
	if err != nil {
		return err
	}
	c := newAPIClient(defaultAddr(*addr), defaultToken(*token))
	resp, err := c.do("DELETE", "/v1/basins/"+uri.Basin, "", nil, nil)
	if err != nil {
		return err
	}
	if err := decodeOrError(resp, nil); err != nil {
		return err
	}
	fmt.Printf("basin %q marked for deletion\n", uri.Basin)
	return nil
}

func runCreateStream(args []string) error {
	fs := flag.NewFlagSet("create-stream", flag.ExitOnError)
	addr, token := commonFlags(fs)
	fs.Parse(args)
	uri, err := parseResourceURI(fs.Arg(0))
	if err != nil {
		return err
	}
	if uri.Stream == "" {
		return fmt.Errorf("create-stream requires s2://basin/stream")
	}
	c := newAPIClient(defaultAddr(*addr), defaultToken(*token))
	resp, err := c.do("POST", "/v1/streams", uri.Basin, nil, map[string]string{"stream": uri.Stream})
	if err != nil {
		return err
	}
	var out streamDTO
	if err := decodeOrError(resp, &out); err != nil {
		return err
	}
	fmt.Printf("created stream %q in basin %q\n", out.Name, uri.Basin)
	return nil
}

func runListStreams(args []string) error {
	fs := flag.NewFlagSet("list-streams", flag.ExitOnError)
	addr, token := commonFlags(fs)
	prefix := fs.String("prefix", "", "only list streams with this name prefix")
	startAfter := fs.String("start-after", "", "resume listing strictly after this stream name")
	limit := fs.Int("limit", 0, "max streams to return")
	fs.Parse(args)
	uri, err := parseResourceURI(fs.Arg(0))
	if err != nil {
		return err
	}
	c := newAPIClient(defaultAddr(*addr), defaultToken(*token))
	q := url.Values{}
	if *prefix != "" {
		q.Set("prefix", *prefix)
	}
	if *startAfter != "" {
		q.Set("start_after", *startAfter)
	}
	if *limit > 0 {
		q.Set("limit", strconv.Itoa(*limit))
	}
	resp, err := c.do("GET", "/v1/streams", uri.Basin, q, nil)
	if err != nil {
		return err
	}
	var out struct {
		Streams []streamDTO `json:"streams"`
	}
	if err := decodeOrError(resp, &out); err != nil {
		return err
	}
	for _, s := range out.Streams {
		fmt.Println(s.Name)
	}
	return nil
}

func runDeleteStream(args []string) error {
	fs := flag.NewFlagSet("delete-stream", flag.ExitOnError)
	addr, token := commonFlags(fs)
	fs.Parse(args)
	uri, err := parseResourceURI(fs.Arg(0))
	if err != nil {
		return err
	}
	if uri.Stream == "" {
		return fmt.Errorf("delete-stream requires s2://basin/stream")
	}
	c := newAPIClient(defaultAddr(*addr), defaultToken(*token))
	resp, err := c.do("DELETE", "/v1/streams/"+uri.Stream, uri.Basin, nil, nil)
	if err != nil {
		return err
	}
	if err := decodeOrError(resp, nil); err != nil {
		return err
	}
	fmt.Printf("deleted stream %q\n", uri.Stream)
	return nil
}

func runAppend(args []string) error {
	fs := flag.NewFlagSet("append", flag.ExitOnError)
	addr, token := commonFlags(fs)
	body := fs.String("body", "", "record body text")
	matchSeqNum := fs.Int64("match-seq-num", -1, "require the current tail to equal this seq_num")
	fencingToken := fs.String("fencing-token", "", "require this fencing token")
	fs.Parse(args)
	uri, err := parseResourceURI(fs.Arg(0))
	if err != nil {
		return err
	}
	if uri.Stream == "" {
		return fmt.Errorf("append requires s2://basin/stream")
	}

	req := appendRequestDTO{Records: []recordDTO{{Body: []byte(*body)}}}
	if *matchSeqNum >= 0 {
		n := uint64(*matchSeqNum)
		req.MatchSeqNum = &n
	}
	if *fencingToken != "" {
		req.FencingToken = fencingToken
	}

	c := newAPIClient(defaultAddr(*addr), defaultToken(*token))
	resp, err := c.do("POST", "/v1/streams/"+uri.Stream+"/records", uri.Basin, nil, req)
	if err != nil {
		return err
	}
	var out appendResponseDTO
	if err := decodeOrError(resp, &out); err != nil {
		return err
	}
	fmt.Printf("appended seq_num [%d, %d)\n", out.StartSeqNum, out.EndSeqNum)
	return nil
}

func runRead(args []string) error {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	addr, token := commonFlags(fs)
	start := fs.String("start", "earliest", "earliest|latest|seq_num:N|timestamp:N|tail_offset:N")
	until := fs.String("until", "", "seq_num:N|timestamp:N")
	limitCount := fs.Uint64("limit-count", 0, "max records to return")
	raw := fs.Bool("raw", false, "print raw bodies instead of base64")
	fs.Parse(args)
	uri, err := parseResourceURI(fs.Arg(0))
	if err != nil {
		return err
	}
	if uri.Stream == "" {
		return fmt.Errorf("read requires s2://basin/stream")
	}

	c := newAPIClient(defaultAddr(*addr), defaultToken(*token))
	q := url.Values{}
	q.Set("start", *start)
	if *until != "" {
		q.Set("until", *until)
	}
	if *limitCount > 0 {
		q.Set("limit_count", strconv.FormatUint(*limitCount, 10))
	}
	resp, err := c.do("GET", "/v1/streams/"+uri.Stream+"/records", uri.Basin, q, nil)
	if err != nil {
		return err
	}
	var out struct {
		Records []recordDTO `json:"records"`
	}
	if err := decodeOrError(resp, &out); err != nil {
		return err
	}
	for _, r := range out.Records {
		if *raw {
			fmt.Printf("%d\t%d\t%s\n", r.SeqNum, r.Timestamp, r.Body)
		} else {
			fmt.Printf("%d\t%d\t%s\n", r.SeqNum, r.Timestamp, base64.StdEncoding.EncodeToString(r.Body))
		}
	}
	return nil
}

func runTail(args []string) error {
	fs := flag.NewFlagSet("tail", flag.ExitOnError)
	addr, token := commonFlags(fs)
	fs.Parse(args)
	uri, err := parseResourceURI(fs.Arg(0))
	if err != nil {
		return err
	}
	if uri.Stream == "" {
		return fmt.Errorf("tail requires s2://basin/stream")
	}
	c := newAPIClient(defaultAddr(*addr), defaultToken(*token))
	resp, err := c.do("GET", "/v1/streams/"+uri.Stream+"/records/tail", uri.Basin, nil, nil)
	if err != nil {
		return err
	}
	var out struct {
		SeqNum    uint64 `json:"seq_num"`
		Timestamp uint64 `json:"timestamp"`
	}
	if err := decodeOrError(resp, &out); err != nil {
		return err
	}
	fmt.Printf("seq_num=%d timestamp=%d\n", out.SeqNum, out.Timestamp)
	return nil
}

func runTrim(args []string) error {
	fs := flag.NewFlagSet("trim", flag.ExitOnError)
	addr, token := commonFlags(fs)
	seqNum := fs.Uint64("seq-num", 0, "new trim point (exclusive lower bound)")
	fs.Parse(args)
	uri, err := parseResourceURI(fs.Arg(0))
	if err != nil {
		return err
	}
	if uri.Stream == "" {
		return fmt.Errorf("trim requires s2://basin/stream")
	}
	c := newAPIClient(defaultAddr(*addr), defaultToken(*token))
	resp, err := c.do("PUT", "/v1/streams/"+uri.Stream+"/trim", uri.Basin, nil, map[string]uint64{"seq_num": *seqNum})
	if err != nil {
		return err
	}
	var out appendResponseDTO
	if err := decodeOrError(resp, &out); err != nil {
		return err
	}
	fmt.Printf("trimmed up to seq_num=%d\n", *seqNum)
	return nil
}

func runFence(args []string) error {
	fs := flag.NewFlagSet("fence", flag.ExitOnError)
	addr, token := commonFlags(fs)
	newToken := fs.String("token", "", "new fencing token")
	fs.Parse(args)
	uri, err := parseResourceURI(fs.Arg(0))
	if err != nil {
		return err
	}
	if uri.Stream == "" {
		return fmt.Errorf("fence requires s2://basin/stream")
	}
	c := newAPIClient(defaultAddr(*addr), defaultToken(*token))
	resp, err := c.do("PUT", "/v1/streams/"+uri.Stream+"/fence", uri.Basin, nil, map[string]string{"fencing_token": *newToken})
	if err != nil {
		return err
	}
	var out appendResponseDTO
	if err := decodeOrError(resp, &out); err != nil {
		return err
	}
	fmt.Printf("fenced stream %q with new token at seq_num=%d\n", uri.Stream, out.StartSeqNum)
	return nil
}

func runBench(args []string) error {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	addr, token := commonFlags(fs)
	records := fs.Int("records", 1000, "number of records to append")
	size := fs.Int("size", 256, "body size in bytes per record")
	fs.Parse(args)
	uri, err := parseResourceURI(fs.Arg(0))
	if err != nil {
		return err
	}
	if uri.Stream == "" {
		return fmt.Errorf("bench requires s2://basin/stream")
	}
	c := newAPIClient(defaultAddr(*addr), defaultToken(*token))
	body := make([]byte, *size)
	start := time.Now()
	for i := 0; i < *records; i++ {
		req := appendRequestDTO{Records: []recordDTO{{Body: body}}}
		resp, err := c.do("POST", "/v1/streams/"+uri.Stream+"/records", uri.Basin, nil, req)
		if err != nil {
			return err
		}
		if err := decodeOrError(resp, &appendResponseDTO{}); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)
	fmt.Printf("appended %d records of %d bytes in %s (%.0f records/sec)\n",
		*records, *size, elapsed, float64(*records)/elapsed.Seconds())
	return nil
}
