/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package main is the entry point for the guestix kernel core.
// main 包是 guestix 内核核心的入口点。
//
// The binary boots an init process on the emulated process table:
// 该程序在模拟进程表上启动 init 进程，负责：
// - Allocates pids and runs one native thread per process / 分配 pid 并为每个进程运行一个原生线程
// - Records reaped processes in the accounting database / 将已回收进程写入记账数据库
// - Serves the process table over HTTP / 通过 HTTP 提供进程表查询
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/guestix/guestix/internal/acct"
	"github.com/guestix/guestix/internal/config"
	"github.com/guestix/guestix/internal/db"
	"github.com/guestix/guestix/internal/logger"
	"github.com/guestix/guestix/internal/otel_trace"
	"github.com/guestix/guestix/internal/process"
	"github.com/guestix/guestix/internal/router"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Version information, set at build time
// 版本信息，在构建时设置
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

const initStopTimeout = 10 * time.Second

// Kernel wires the process core to its accounting and HTTP surfaces
// Kernel 将进程核心与记账、HTTP 接口组装在一起
type Kernel struct {
	config *config.Config

	// ctx is the main context for the kernel
	// ctx 是内核的主上下文
	ctx    context.Context
	cancel context.CancelFunc

	manager *process.Manager
	driver  *process.Driver
	stub    *StubInterpreter

	// accounting, nil when disabled / 记账组件，禁用时为 nil
	gdb      *gorm.DB
	repo     *acct.Repository
	recorder *acct.Recorder

	server   *router.Server
	serverWG sync.WaitGroup

	// running indicates if the kernel is running
	// running 表示内核是否正在运行
	running bool
	mu      sync.RWMutex
}

// NewKernel creates a new Kernel with the process core initialized
// NewKernel 创建一个已初始化进程核心的 Kernel 实例
func NewKernel(cfg *config.Config, workers int) *Kernel {
	ctx, cancel := context.WithCancel(context.Background())

	m := process.NewManager(process.ManagerConfig{MaxPID: cfg.Kernel.MaxPID})
	stub := NewStubInterpreter(m, workers)
	d := process.NewDriver(m, stub)
	stub.Bind(d)

	return &Kernel{
		config:  cfg,
		ctx:     ctx,
		cancel:  cancel,
		manager: m,
		driver:  d,
		stub:    stub,
	}
}

// Run boots the kernel and blocks until Shutdown is called
// Run 启动内核并阻塞直到调用 Shutdown
func (k *Kernel) Run() error {
	k.mu.Lock()
	if k.running {
		k.mu.Unlock()
		return fmt.Errorf("kernel is already running / 内核已在运行")
	}
	k.running = true
	k.mu.Unlock()

	fmt.Println("========================================")
	fmt.Println("  guestix Kernel Starting...")
	fmt.Println("  guestix 内核正在启动...")
	fmt.Println("========================================")
	fmt.Printf("Version: %s, Commit: %s, Build: %s\n", Version, GitCommit, BuildTime)
	fmt.Printf("Max PID: %d, Max Threads: %d\n", k.manager.Table().MaxPID(), k.config.Kernel.MaxThreads)
	fmt.Printf("Log Level: %s\n", k.config.Log.Level)

	// Step 1: Telemetry
	// 步骤 1：初始化遥测
	fmt.Println("[1/5] Initializing telemetry... / 初始化遥测...")
	otel_trace.Init(k.ctx, k.config.Telemetry)

	// Step 2: Accounting database
	// 步骤 2：打开记账数据库
	fmt.Println("[2/5] Opening accounting database... / 打开记账数据库...")
	if err := k.openAccounting(); err != nil {
		return k.abortBoot(nil, fmt.Errorf("failed to open accounting: %w / 打开记账数据库失败：%w", err, err))
	}

	// Step 3: Process core
	// 步骤 3：配置进程核心
	fmt.Println("[3/5] Configuring process core... / 配置进程核心...")
	process.SetMaxThreads(k.config.Kernel.MaxThreads)
	handlers := []process.EventHandler{k.handleProcessEvent}
	if k.recorder != nil {
		handlers = append(handlers, k.recorder.Handle)
	}
	k.manager.SetEventHandler(process.ChainHandlers(handlers...))

	// Step 4: Init process
	// 步骤 4：启动 init 进程
	fmt.Println("[4/5] Starting init process... / 启动 init 进程...")
	initProc, err := k.manager.Create(k.ctx, nil)
	if err != nil {
		return k.abortBoot(nil, fmt.Errorf("failed to create init: %w / 创建 init 失败：%w", err, err))
	}
	if initProc.PID() != process.ReaperPID {
		return k.abortBoot(initProc, fmt.Errorf("init got pid %d / init 获得了错误的 pid %d", initProc.PID(), initProc.PID()))
	}
	k.driver.Start(k.ctx, initProc)

	// Step 5: HTTP introspection
	// 步骤 5：启动 HTTP 内省接口
	fmt.Println("[5/5] Starting HTTP server... / 启动 HTTP 服务...")
	k.startServer()

	fmt.Println("========================================")
	fmt.Println("  Kernel started successfully!")
	fmt.Println("  内核启动成功！")
	fmt.Println("========================================")

	<-k.ctx.Done()

	k.stop(initProc)
	return nil
}

// abortBoot undoes a partial Run so that nothing started by it outlives the error.
func (k *Kernel) abortBoot(initProc *process.Process, err error) error {
	ctx := context.Background()
	k.cancel()
	if initProc != nil {
		k.manager.Destroy(ctx, initProc)
	}
	if k.gdb != nil {
		if cerr := db.Close(k.gdb); cerr != nil {
			logger.Warn(ctx, "[Kernel] close accounting failed / 关闭记账数据库失败", zap.Error(cerr))
		}
		k.gdb, k.repo, k.recorder = nil, nil, nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	otel_trace.Shutdown(shutdownCtx)

	k.mu.Lock()
	k.running = false
	k.mu.Unlock()
	logger.Error(ctx, "[Kernel] boot failed / 内核启动失败", zap.Error(err))
	return err
}

func (k *Kernel) openAccounting() error {
	if !k.config.Accounting.Enabled {
		fmt.Println("Accounting disabled / 记账已禁用")
		return nil
	}
	gdb, err := db.Open(k.ctx, k.config.Accounting)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(k.ctx, gdb, &acct.Record{}); err != nil {
		_ = db.Close(gdb)
		return err
	}
	k.gdb = gdb
	k.repo = acct.NewRepository(gdb)
	k.recorder = acct.NewRecorder(k.repo, "")
	fmt.Printf("Boot ID: %s\n", k.recorder.BootID())
	return nil
}

func (k *Kernel) startServer() {
	if !k.config.HTTP.Enabled {
		fmt.Println("HTTP server disabled / HTTP 服务已禁用")
		return
	}
	h := router.NewHandler(k.manager, k.repo)
	k.server = router.NewServer(k.config.HTTP, h, k.config.Telemetry.ServiceName)
	k.serverWG.Add(1)
	go func() {
		defer k.serverWG.Done()
		if err := k.server.Run(k.ctx); err != nil {
			logger.Error(context.Background(), "[Kernel] http server stopped / HTTP 服务异常停止", zap.Error(err))
		}
	}()
}

// stop delivers SIGTERM to init, waits for it to become a zombie and then
// tears down the outer surfaces.
func (k *Kernel) stop(initProc *process.Process) {
	ctx := context.Background()
	fmt.Println("Stopping kernel... / 正在停止内核...")

	if err := k.manager.Kill(ctx, initProc.PID(), process.SIGTERM); err != nil && !errors.Is(err, process.ErrNoSuchProcess) {
		logger.Warn(ctx, "[Kernel] signal init failed / 向 init 发送信号失败", zap.Error(err))
	}
	deadline := time.Now().Add(initStopTimeout)
	for !initProc.IsZombie() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if initProc.IsZombie() {
		k.manager.Destroy(ctx, initProc)
	} else {
		logger.Warn(ctx, "[Kernel] init did not exit in time / init 未在规定时间内退出")
	}

	k.serverWG.Wait()
	if err := db.Close(k.gdb); err != nil {
		logger.Warn(ctx, "[Kernel] close accounting failed / 关闭记账数据库失败", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	otel_trace.Shutdown(shutdownCtx)
	_ = logger.Sync()

	k.mu.Lock()
	k.running = false
	k.mu.Unlock()
	fmt.Println("Kernel stopped / 内核已停止")
}

// Shutdown asks Run to stop the kernel
// Shutdown 请求 Run 停止内核
func (k *Kernel) Shutdown() {
	k.cancel()
}

// IsRunning reports whether Run is active
// IsRunning 返回内核是否正在运行
func (k *Kernel) IsRunning() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.running
}

func (k *Kernel) handleProcessEvent(ctx context.Context, ev process.Event, info *process.Info) {
	logger.Debug(ctx, "[Kernel] process event / 进程事件",
		zap.String("event", string(ev)),
		zap.Int32("pid", int32(info.PID)),
		zap.Int32("ppid", int32(info.PPID)),
		zap.String("comm", info.Comm),
	)
}

// rootCmd is the root command for the guestix CLI
// rootCmd 是 guestix CLI 的根命令
var rootCmd = &cobra.Command{
	Use:   "guestix",
	Short: "guestix - process core of an emulated Unix kernel",
	Long: `guestix runs the process identity and lifecycle core of an emulated Unix kernel.
guestix 运行模拟 Unix 内核的进程标识与生命周期核心。

- PID allocation with wrap-around reuse / 支持回绕复用的 PID 分配
- One native thread per process / 每个进程一个原生线程
- Zombie reaping and orphan reparenting / 僵尸进程回收与孤儿进程重新归属`,
	SilenceUsage: true,
}

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Boot init and serve until interrupted / 启动 init 并运行直到被中断",
	RunE:  runBoot,
}

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Hammer the pid table with concurrent create and destroy / 并发压测 PID 表",
	RunE:  runStressCmd,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers / 配置工具",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration / 打印生效配置",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out, err := cfg.ToYAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

// versionCmd shows version information
// versionCmd 显示版本信息
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information / 打印版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "guestix\n")
		fmt.Fprintf(out, "  Version:    %s\n", Version)
		fmt.Fprintf(out, "  Git Commit: %s\n", GitCommit)
		fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
		fmt.Fprintf(out, "  Go Version: %s\n", runtime.Version())
		fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

// configFile is the path to the configuration file
// configFile 是配置文件的路径
var configFile string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: "+config.DefaultConfigPath+")")
	rootCmd.PersistentFlags().Int("max-pid", 0, "override kernel.max_pid")

	bootCmd.Flags().Int("workers", 4, "worker processes forked by init")

	stressCmd.Flags().Int("workers", 8, "concurrent goroutines")
	stressCmd.Flags().Int("iterations", 1000, "create/destroy cycles per goroutine")
	stressCmd.Flags().Int("hold", defaultStressHold, "live processes each goroutine keeps before releasing the oldest")
	stressCmd.Flags().Bool("threads", false, "start a thread per process and reap it through wait")

	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(bootCmd, stressCmd, configCmd, versionCmd)
}

// loadConfig resolves file, env and flag overrides, then validates
// loadConfig 解析配置文件、环境变量与命令行覆盖并校验
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	overrides := map[string]interface{}{}
	if f := cmd.Flags().Lookup("max-pid"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetInt("max-pid")
		overrides["kernel.max_pid"] = v
	}
	cfg, err := config.LoadWithPriority(configFile, overrides)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w / 加载配置失败：%w", err, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w / 无效配置：%w", err, err)
	}
	return cfg, nil
}

func runBoot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to init logger: %w / 初始化日志失败：%w", err, err)
	}
	workers, _ := cmd.Flags().GetInt("workers")

	kernel := NewKernel(cfg, workers)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- kernel.Run()
	}()

	select {
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal: %v / 收到信号：%v\n", sig, sig)
		kernel.Shutdown()
		return <-errChan
	case err := <-errChan:
		return err
	}
}

func runStressCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to init logger: %w / 初始化日志失败：%w", err, err)
	}
	opts := StressOptions{MaxPID: cfg.Kernel.MaxPID}
	opts.Workers, _ = cmd.Flags().GetInt("workers")
	opts.Iterations, _ = cmd.Flags().GetInt("iterations")
	opts.Hold, _ = cmd.Flags().GetInt("hold")
	opts.Threads, _ = cmd.Flags().GetBool("threads")
	if opts.Threads {
		process.SetMaxThreads(cfg.Kernel.MaxThreads)
	}

	report, err := runStress(cmd.Context(), opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.String())
	if report.Duplicates > 0 {
		return fmt.Errorf("%d duplicate live pids / 发现 %d 个重复的存活 pid", report.Duplicates, report.Duplicates)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
