package lspregistry

// builtinServers returns the built-in language table (spec §4.7),
// grounded on original_source/lsp-daemon/src/lsp_registry.rs's
// register_builtin_servers.
func builtinServers() map[string]ServerConfig {
	servers := []ServerConfig{
		{
			Language:                  "rust",
			Command:                   "rust-analyzer",
			RootMarkers:               []string{"Cargo.toml"},
			InitializationTimeoutSecs: 10,
			InitializationOptions: rawJSON(`{
				"cargo": {"buildScripts": {"enable": true}},
				"procMacro": {"enable": true},
				"checkOnSave": {"enable": false},
				"completion": {"limit": 25}
			}`),
		},
		{
			Language:                  "typescript",
			Command:                   "typescript-language-server",
			Args:                      []string{"--stdio"},
			RootMarkers:               []string{"package.json", "tsconfig.json"},
			InitializationTimeoutSecs: 30,
		},
		{
			Language:                  "javascript",
			Command:                   "typescript-language-server",
			Args:                      []string{"--stdio"},
			RootMarkers:               []string{"package.json", "jsconfig.json"},
			InitializationTimeoutSecs: 30,
		},
		{
			Language:                  "python",
			Command:                   "pylsp",
			RootMarkers:               []string{"setup.py", "pyproject.toml", "requirements.txt"},
			InitializationTimeoutSecs: 30,
		},
		{
			Language:                  "go",
			Command:                   "gopls",
			Args:                      []string{"serve", "-mode=stdio"},
			RootMarkers:               []string{"go.mod", "go.work"},
			InitializationTimeoutSecs: 30,
			InitializationOptions: rawJSON(`{
				"expandWorkspaceToModule": true,
				"symbolScope": "workspace"
			}`),
		},
		{
			Language:                  "java",
			Command:                   "jdtls",
			RootMarkers:               []string{"pom.xml", "build.gradle", "build.gradle.kts"},
			InitializationTimeoutSecs: 60,
		},
		{
			Language:                  "c",
			Command:                   "clangd",
			RootMarkers:               []string{"compile_commands.json", "Makefile"},
			InitializationTimeoutSecs: 30,
		},
		{
			Language:                  "cpp",
			Command:                   "clangd",
			RootMarkers:               []string{"compile_commands.json", "CMakeLists.txt"},
			InitializationTimeoutSecs: 30,
		},
		{
			Language:                  "csharp",
			Command:                   "omnisharp",
			RootMarkers:               []string{"*.sln", "*.csproj"},
			InitializationTimeoutSecs: 60,
		},
		{
			Language:                  "ruby",
			Command:                   "solargraph",
			Args:                      []string{"stdio"},
			RootMarkers:               []string{"Gemfile", ".solargraph.yml"},
			InitializationTimeoutSecs: 30,
		},
		{
			Language:                  "php",
			Command:                   "intelephense",
			Args:                      []string{"--stdio"},
			RootMarkers:               []string{"composer.json", ".git"},
			InitializationTimeoutSecs: 30,
		},
		{
			Language:                  "swift",
			Command:                   "sourcekit-lsp",
			RootMarkers:               []string{"Package.swift", "*.xcodeproj"},
			InitializationTimeoutSecs: 30,
		},
		{
			Language:                  "kotlin",
			Command:                   "kotlin-language-server",
			RootMarkers:               []string{"build.gradle.kts", "settings.gradle.kts"},
			InitializationTimeoutSecs: 60,
		},
		{
			Language:                  "scala",
			Command:                   "metals",
			RootMarkers:               []string{"build.sbt", "build.sc"},
			InitializationTimeoutSecs: 60,
		},
		{
			Language:                  "haskell",
			Command:                   "haskell-language-server-wrapper",
			Args:                      []string{"--lsp"},
			RootMarkers:               []string{"*.cabal", "stack.yaml"},
			InitializationTimeoutSecs: 60,
		},
		{
			Language:                  "elixir",
			Command:                   "elixir-ls",
			RootMarkers:               []string{"mix.exs"},
			InitializationTimeoutSecs: 30,
		},
		{
			Language:                  "clojure",
			Command:                   "clojure-lsp",
			RootMarkers:               []string{"project.clj", "deps.edn"},
			InitializationTimeoutSecs: 30,
		},
		{
			Language:                  "lua",
			Command:                   "lua-language-server",
			RootMarkers:               []string{".luarc.json", ".git"},
			InitializationTimeoutSecs: 10,
		},
		{
			Language:                  "zig",
			Command:                   "zls",
			RootMarkers:               []string{"build.zig"},
			InitializationTimeoutSecs: 10,
		},
	}

	out := make(map[string]ServerConfig, len(servers))
	for _, s := range servers {
		out[s.Language] = s
	}
	return out
}

func rawJSON(s string) []byte {
	return []byte(s)
}
